package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SaveTOML writes the appliance config (or any TOML-tagged struct) to
// path, creating the config directory on first run.
func SaveTOML(path string, data interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// LoadTOML decodes the TOML file at path into data.
func LoadTOML(path string, data interface{}) error {
	_, err := toml.DecodeFile(path, data)
	return err
}
