// Package config loads application settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment settings.
const (
	EnvPrefix     = "MYTODOS"
	EnvConfigFile = "MYTODOS_CONFIG"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" toml:"server"`
	Storage StorageConfig `mapstructure:"storage" toml:"storage"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
	Load    LoadConfig    `mapstructure:"load" toml:"load"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" toml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" toml:"driver"` // "sqlite", "file" or "memory"
	Path   string `mapstructure:"path" toml:"path"`
	Key    string `mapstructure:"key" toml:"key"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"` // "json" or "console"
	Output string `mapstructure:"output" toml:"output"`
}

// LoadConfig controls how persisted state is read at startup.
type LoadConfig struct {
	// Strict refuses to start when the persisted list is corrupt.
	Strict bool `mapstructure:"strict" toml:"strict"`
}

// Validation errors.
var (
	ErrInvalidAddr            = errors.New("server address is required")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidDriver          = errors.New("storage driver must be one of: sqlite, file, memory")
	ErrInvalidPath            = errors.New("storage path is required for the sqlite and file drivers")
	ErrInvalidKey             = errors.New("storage key is required")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be one of: json, console")
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./data/mytodos.db",
			Key:    "todos",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// Load reads configuration from defaults, the config file and the environment,
// in increasing priority. path selects the config file; when empty,
// MYTODOS_CONFIG and then the user config directory are tried. A missing file
// in the default location is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("toml")
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if explicit {
		v.SetConfigFile(path)
	} else if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "mytodos"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names.
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("storage.path", "MYTODOS_STORAGE_PATH", "DB_PATH")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	port := v.GetString("server.port")
	if port != "" && os.Getenv(EnvPrefix+"_SERVER_ADDR") == "" && !v.InConfig("server.addr") {
		c.Server.Addr = ":" + port
	}

	return c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.key", d.Storage.Key)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("load.strict", d.Load.Strict)
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrInvalidAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	switch c.Storage.Driver {
	case "sqlite", "file":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return ErrInvalidPath
		}
	case "memory":
	default:
		return ErrInvalidDriver
	}

	if strings.TrimSpace(c.Storage.Key) == "" {
		return ErrInvalidKey
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}
