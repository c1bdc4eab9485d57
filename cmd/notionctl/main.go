// Command notionctl reads and watches records of the remote document store
// from the command line. Output is JSON on stdout.
//
// Configuration comes from a TOML file (--config) and the NOTION_TOKEN_V2 and
// NOTION_BASE_URL environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	notion "github.com/notion-go/notion"
)

type app struct {
	out        io.Writer
	configPath string
	logLevel   string
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "notionctl",
		Short:         "Inspect records of a Notion workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		a.newGetCommand(),
		a.newRefreshCommand(),
		a.newQueryCommand(),
		a.newSearchCommand(),
		a.newWatchCommand(),
	)
	return rootCmd
}

func (a *app) config() (*notion.Config, error) {
	cfg, err := notion.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (a *app) connect(ctx context.Context) (*notion.Client, *notion.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	c, err := notion.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func (a *app) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "notionctl:", err)
		stop()
		os.Exit(1)
	}
}
