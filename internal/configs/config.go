package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type ApplianceConfig struct {
	Appliance Appliance               `toml:"appliance"`
	Aliases   map[string]string       `toml:"aliases"`
	Volumes   map[string]VolumeConfig `toml:"volumes"`
}

type Appliance struct {
	UUID string `toml:"appliance_uuid"`
	Name string `toml:"name"`
}

type VolumeConfig struct {
	Device     string    `toml:"device"`
	MapperName string    `toml:"mapper_name"`
	AddedAt    time.Time `toml:"added_at"`
}

// LoadApplianceConfig loads the appliance configuration from the config file.
// A missing file yields an empty config, not an error.
func LoadApplianceConfig() (*ApplianceConfig, error) {
	configPath := filepath.Join(HearthSettings.ConfigPath, "config.toml")

	config := &ApplianceConfig{
		Aliases: make(map[string]string),
		Volumes: make(map[string]VolumeConfig),
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load appliance config: %w", err)
	}

	if config.Aliases == nil {
		config.Aliases = make(map[string]string)
	}
	if config.Volumes == nil {
		config.Volumes = make(map[string]VolumeConfig)
	}

	return config, nil
}

// SaveApplianceConfig saves the appliance configuration to the config file.
func SaveApplianceConfig(config *ApplianceConfig) error {
	configPath := filepath.Join(HearthSettings.ConfigPath, "config.toml")

	if err := SaveTOML(configPath, config); err != nil {
		return fmt.Errorf("failed to save appliance config: %w", err)
	}

	return nil
}

// EnsureApplianceConfig ensures the appliance configuration exists and has a UUID.
func EnsureApplianceConfig() (*ApplianceConfig, error) {
	config, err := LoadApplianceConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load appliance config: %w", err)
	}

	if config.Appliance.UUID == "" {
		config.Appliance.UUID = uuid.New().String()
		if err := SaveApplianceConfig(config); err != nil {
			return nil, fmt.Errorf("failed to save appliance config: %w", err)
		}
	}

	return config, nil
}

// ResolveAlias returns the device path configured for alias, if any.
func (c *ApplianceConfig) ResolveAlias(alias string) (string, bool) {
	device, ok := c.Aliases[alias]
	return device, ok
}
