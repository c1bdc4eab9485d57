package main

import (
	"fmt"

	"github.com/spf13/cobra"

	notion "github.com/notion-go/notion"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/models"
	"github.com/notion-go/notion/pkg/monitor"
	"github.com/notion-go/notion/pkg/store"
)

var tables = []string{
	constants.TableBlock,
	constants.TableCollection,
	constants.TableCollectionView,
	constants.TableUser,
	constants.TableSpace,
}

func checkTable(table string) error {
	for _, t := range tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", constants.ErrUnknownTable, table)
}

// recordID normalizes ids, and accepts page URLs for blocks.
func recordID(table, raw string) (string, error) {
	if table == constants.TableBlock {
		return models.ExtractID(raw)
	}
	return models.NormalizeID(raw)
}

func (a *app) newGetCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "get <table> <id or url>",
		Short: "Print the raw payload of one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if err := checkTable(table); err != nil {
				return err
			}
			id, err := recordID(table, args[1])
			if err != nil {
				return err
			}

			c, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			var opts []notion.GetOption
			if force {
				opts = append(opts, notion.ForceRefresh())
			}
			rec, err := c.GetRecordData(cmd.Context(), table, id, opts...)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("%s %s not found", table, id)
			}
			return a.print(rec)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the cache")
	return cmd
}

func (a *app) newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <table> <id>...",
		Short: "Re-fetch records in one call and print them",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if err := checkTable(table); err != nil {
				return err
			}
			ids := make([]string, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := recordID(table, raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			c, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.RefreshRecords(cmd.Context(), store.Selector{table: store.IDs(ids...)}); err != nil {
				return err
			}

			out := make(map[string]models.Record, len(ids))
			for _, id := range ids {
				out[id] = c.Store().Cached(table, id).Value
			}
			return a.print(out)
		},
	}
}

func (a *app) newQueryCommand() *cobra.Command {
	var spec models.QuerySpec
	cmd := &cobra.Command{
		Use:   "query <database url with ?v=view>",
		Short: "Run a collection view query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := models.ParseViewURL(args[0]); err != nil {
				return err
			}
			c, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			view, err := c.GetCollectionView(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if view == nil {
				return fmt.Errorf("no collection view at %s", args[0])
			}
			res, err := view.Query(cmd.Context(), spec)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVarP(&spec.Search, "search", "s", "", "full-text filter")
	cmd.Flags().IntVarP(&spec.Limit, "limit", "n", 0, "maximum number of rows")
	return cmd
}

type pageSummary struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

func (a *app) newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <parent id> <query>",
		Short: "Search pages below a parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := models.NormalizeID(args[0])
			if err != nil {
				return err
			}
			c, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			pages, err := c.SearchPagesWithParent(cmd.Context(), parentID, args[1])
			if err != nil {
				return err
			}
			out := make([]pageSummary, len(pages))
			for i, p := range pages {
				out[i] = pageSummary{ID: p.ID(), Type: p.Type(), Title: p.Title()}
			}
			return a.print(out)
		},
	}
}

func (a *app) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <table> <id>...",
		Short: "Follow remote edits of records, printing each refreshed record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table := args[0]
			if err := checkTable(table); err != nil {
				return err
			}
			ids := make([]string, 0, len(args)-1)
			keys := make([]models.Key, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := recordID(table, raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				keys = append(keys, models.NewKey(table, id))
			}

			c, cfg, err := a.connect(ctx)
			if err != nil {
				return err
			}
			if err := c.RefreshRecords(ctx, store.Selector{table: store.IDs(ids...)}); err != nil {
				return err
			}

			st := c.Store()
			m, err := monitor.New(cfg.BaseURL, st,
				monitor.WithToken(cfg.TokenV2),
				monitor.OnRefresh(func(refreshed []models.Key) {
					for _, k := range refreshed {
						_ = a.print(map[string]any{"table": k.Table, "id": k.ID, "value": st.Cached(k.Table, k.ID).Value})
					}
				}),
			)
			if err != nil {
				return err
			}
			return m.Run(ctx, keys)
		},
	}
}
