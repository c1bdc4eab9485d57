package notion

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/logger"
)

// Environment variables that override values read from a config file.
const (
	EnvToken   = "NOTION_TOKEN_V2"
	EnvBaseURL = "NOTION_BASE_URL"
)

// Config holds everything needed to build a Client over HTTP.
type Config struct {
	// BaseURL of the remote store, without the /api/v3 suffix.
	BaseURL string `toml:"base_url"`
	// TokenV2 is the value of the token_v2 session cookie.
	TokenV2 string `toml:"token_v2"`
	// UserID of the token owner. Looked up remotely when empty.
	UserID string `toml:"user_id"`
	// Timeout for a single HTTP request.
	Timeout time.Duration `toml:"timeout"`
	// MaxRetries for throttled and 5xx responses.
	MaxRetries uint64 `toml:"max_retries"`
	// LogLevel is a zerolog level name ("debug", "info", ...).
	LogLevel string `toml:"log_level"`

	Logger logger.Logger `toml:"-"`
}

// NewConfig creates a Config with default values.
func NewConfig(token string) *Config {
	return &Config{
		BaseURL:    constants.DefaultBaseURL,
		TokenV2:    token,
		Timeout:    constants.DefaultHTTPTimeout,
		MaxRetries: constants.DefaultMaxRetries,
		LogLevel:   zerolog.LevelInfoValue,
	}
}

// LoadConfig reads a TOML config file on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig("")
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.TokenV2 = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return constants.ErrNoBaseURL
	}
	if !strings.HasPrefix(c.BaseURL, constants.HTTPScheme+"://") && !strings.HasPrefix(c.BaseURL, constants.HTTPSecureScheme+"://") {
		return fmt.Errorf("base url %q must be http or https", c.BaseURL)
	}
	if c.TokenV2 == "" {
		return constants.ErrNoToken
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	return nil
}

// logger returns the configured Logger, or a zerolog logger on stderr at LogLevel.
func (c *Config) logger() logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	data, err := logger.New().FromBuffer(os.Stderr).Level(level).Make()
	if err != nil {
		return logger.Nop()
	}
	return data.Adapter()
}
