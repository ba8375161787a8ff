package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const exampleHeader = `# mytodos configuration file
# Every key can be overridden with an environment variable:
# MYTODOS_<SECTION>_<KEY>, e.g. MYTODOS_STORAGE_DRIVER=file

`

// ErrConfigExists is returned by WriteExample when the target file already exists.
var ErrConfigExists = errors.New("config file already exists")

// Marshal renders c as TOML.
func Marshal(c Config) ([]byte, error) {
	doc := map[string]interface{}{
		"server": map[string]interface{}{
			"addr":             c.Server.Addr,
			"shutdown_timeout": c.Server.ShutdownTimeout.String(),
		},
		"storage": map[string]interface{}{
			"driver": c.Storage.Driver,
			"path":   c.Storage.Path,
			"key":    c.Storage.Key,
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
			"output": c.Log.Output,
		},
		"load": map[string]interface{}{
			"strict": c.Load.Strict,
		},
	}

	var buf bytes.Buffer
	buf.WriteString(exampleHeader)
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultPath returns the config file location Load falls back to.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "mytodos", "config.toml"), nil
}

// WriteExample writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
