package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config source at an empty temp location.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv(EnvConfigFile, "")
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("MYTODOS_SERVER_ADDR", "")
	t.Setenv("MYTODOS_STORAGE_PATH", "")
	t.Setenv("MYTODOS_STORAGE_DRIVER", "")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	writeFile(t, path, `
[server]
addr = ":9999"
shutdown_timeout = "3s"

[storage]
driver = "file"
path = "/tmp/todos.json"

[load]
strict = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/todos.json", cfg.Storage.Path)
	assert.Equal(t, "todos", cfg.Storage.Key, "unset keys keep defaults")
	assert.True(t, cfg.Load.Strict)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_UserConfigDir(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".config", "mytodos", "config.toml"), `
[log]
level = "debug"
`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[storage]
driver = "file"
`)
	t.Setenv("MYTODOS_STORAGE_DRIVER", "memory")
	t.Setenv("MYTODOS_LOG_FORMAT", "console")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "env.toml")
	writeFile(t, path, `
[storage]
key = "work"
`)
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "work", cfg.Storage.Key)
}

func TestLoad_LegacyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "3000")
	t.Setenv("DB_PATH", "/var/lib/todos.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/todos.db", cfg.Storage.Path)
}

func TestLoad_ServerAddrBeatsLegacyPort(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "3000")
	t.Setenv("MYTODOS_SERVER_ADDR", "127.0.0.1:4000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "memory driver needs no path", mutate: func(c *Config) { c.Storage.Driver = "memory"; c.Storage.Path = "" }},
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = " " }, wantErr: ErrInvalidAddr},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Server.ShutdownTimeout = 0 }, wantErr: ErrInvalidShutdownTimeout},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: ErrInvalidDriver},
		{name: "file driver without path", mutate: func(c *Config) { c.Storage.Driver = "file"; c.Storage.Path = "" }, wantErr: ErrInvalidPath},
		{name: "empty key", mutate: func(c *Config) { c.Storage.Key = "" }, wantErr: ErrInvalidKey},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: ErrInvalidLogLevel},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWriteExample_RoundTrips(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	require.NoError(t, WriteExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestWriteExample_RefusesOverwrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "# mine\n")

	err := WriteExample(path)
	assert.ErrorIs(t, err, ErrConfigExists)

	raw, _ := os.ReadFile(path)
	assert.Equal(t, "# mine\n", string(raw))
}
