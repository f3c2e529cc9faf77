package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigurationDefaults(t *testing.T) {
	cfg, err := ReadConfiguration("", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, "buntdb", cfg.PersistenceConfig.Type)
	assert.Equal(t, ":memory:", cfg.PersistenceConfig.DSN)
	assert.Equal(t, 5*time.Second, cfg.PersistenceConfig.Timeout)
	assert.Equal(t, "aperolandTicket", cfg.AuthConfig.CookieName)
	assert.Equal(t, 50, cfg.HistoryConfig.Size)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestReadConfigurationDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.toml"), []byte(`
addr = "0.0.0.0:9000"
timezone = "Europe/Paris"
allowed_origins = ["https://aperoland.example"]

[persistence]
type = "sqlite"
dsn = "chat.db"
timeout = "2s"
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.toml"), []byte(`
[auth]
jwt_secret = "s3cret"
allow_guests = true

[history]
retention = "720h"

[[oidc]]
name = "google"
provider_url = "https://accounts.google.com"

[filter]
message = "len(Message) <= 500"
`), 0o600))

	cfg, err := ReadConfiguration(dir, GetFlagSet())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, []string{"https://aperoland.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.PersistenceConfig.Type)
	assert.Equal(t, "chat.db", cfg.PersistenceConfig.DSN)
	assert.Equal(t, 2*time.Second, cfg.PersistenceConfig.Timeout)
	assert.Equal(t, "s3cret", cfg.AuthConfig.JWTSecret)
	assert.True(t, cfg.AuthConfig.AllowGuests)
	assert.Equal(t, 720*time.Hour, cfg.HistoryConfig.Retention)
	require.Len(t, cfg.OIDCConfigs, 1)
	assert.Equal(t, "google", cfg.OIDCConfigs[0].Name)
	assert.Equal(t, "len(Message) <= 500", cfg.FilterConfig.Message)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestReadConfigurationFlagsAndEnv(t *testing.T) {
	flagSet := GetFlagSet()
	require.NoError(t, flagSet.Parse([]string{"--addr", ":7000", "--log-level", "DEBUG"}))
	t.Setenv("APEROLAND_PERSISTENCE_TYPE", "postgres")

	cfg, err := ReadConfiguration("", flagSet)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.PersistenceConfig.Type)
}

func TestReadConfigurationErrors(t *testing.T) {
	_, err := ReadConfiguration(filepath.Join(t.TempDir(), "missing.toml"), nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "tz.toml")
	require.NoError(t, os.WriteFile(file, []byte(`timezone = "Nowhere/Atlantis"`), 0o600))
	_, err = ReadConfiguration(file, nil)
	assert.Error(t, err)
}
