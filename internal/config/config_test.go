package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Chat.MaxHistoryPerUser)
	assert.Equal(t, PersistModeSync, cfg.Chat.PersistMode)
	assert.Equal(t, 24*60, cfg.Auth.JWTExpireMinute)
	assert.Equal(t, "0.0.0.0:3000", cfg.HTTPAddr())
	assert.False(t, cfg.Google.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[app]
port = 4000

[database]
driver = "sqlite"
sqlite_path = "test.db"

[chat]
max_history_per_user = 5
`), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("GOOGLE_CLIENT_ID=abc\nGOOGLE_CLIENT_SECRET=def\n"), 0o600))

	t.Setenv("CONFIG_FILE", tomlPath)
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("CHAT_MAX_HISTORY_PER_USER", "7")
	t.Setenv("CORS_ORIGIN", "http://a.test, http://b.test")
	t.Cleanup(func() {
		os.Unsetenv("GOOGLE_CLIENT_ID")
		os.Unsetenv("GOOGLE_CLIENT_SECRET")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Chat.MaxHistoryPerUser)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.App.CORSOrigins)
	assert.True(t, cfg.Google.Enabled())
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Chat.PersistMode = PersistModeQueue
	assert.Error(t, cfg.Validate())

	cfg.RabbitMQ.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())
}
