package notion

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notion-go/notion/pkg/constants"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notion.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvToken, "")
	t.Setenv(EnvBaseURL, "")

	path := writeConfig(t, `
base_url = "http://localhost:8080"
token_v2 = "secret"
user_id = "5a1b9f6e-2c4d-4e8f-9a0b-1c2d3e4f5a6b"
timeout = "5s"
max_retries = 1
log_level = "debug"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "secret", cfg.TokenV2)
	assert.Equal(t, testUser, cfg.UserID)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(1), cfg.MaxRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	t.Setenv(EnvBaseURL, "")

	cfg, err := LoadConfig(writeConfig(t, `token_v2 = "from-file"`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.TokenV2)
	assert.Equal(t, constants.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, constants.DefaultHTTPTimeout, cfg.Timeout)
	assert.Equal(t, uint64(constants.DefaultMaxRetries), cfg.MaxRetries)

	t.Setenv(EnvBaseURL, "https://example.com")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.BaseURL)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv(EnvToken, "")
	t.Setenv(EnvBaseURL, "")

	_, err := LoadConfig("")
	require.ErrorIs(t, err, constants.ErrNoToken)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `token_v2 = [`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := NewConfig("secret")
	require.NoError(t, cfg.Validate())

	cfg.BaseURL = ""
	require.ErrorIs(t, cfg.Validate(), constants.ErrNoBaseURL)

	cfg.BaseURL = "ftp://example.com"
	require.Error(t, cfg.Validate())

	cfg = NewConfig("secret")
	cfg.LogLevel = "loud"
	require.Error(t, cfg.Validate())
}
