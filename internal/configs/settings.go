package configs

import (
	"os"
	"path/filepath"
)

type ApplianceSettings struct {
	// ConfigPath is the directory holding config.toml.
	ConfigPath string

	// DataPath is the directory holding the keystore and audit log.
	DataPath string

	// KeystorePath is where the sealed managed passphrase lives.
	KeystorePath string

	// AuditLogPath is the append-only operation trail.
	AuditLogPath string
}

var HearthSettings *ApplianceSettings

func init() {
	HearthSettings = DefaultSettings()
}

// DefaultSettings resolves the appliance directories. When running as root
// (the normal appliance deployment) the system paths are used; otherwise
// XDG-style user directories, so development and tests never touch /etc.
// HEARTH_CONFIG_DIR and HEARTH_DATA_DIR override both.
func DefaultSettings() *ApplianceSettings {
	configDir := os.Getenv("HEARTH_CONFIG_DIR")
	dataDir := os.Getenv("HEARTH_DATA_DIR")

	if configDir == "" {
		if os.Geteuid() == 0 {
			configDir = "/etc/hearth"
		} else if userConfig, err := os.UserConfigDir(); err == nil {
			configDir = filepath.Join(userConfig, "hearth")
		} else {
			configDir = "/etc/hearth"
		}
	}

	if dataDir == "" {
		if os.Geteuid() == 0 {
			dataDir = "/var/lib/hearth"
		} else {
			dataDir = os.Getenv("XDG_DATA_HOME")
			if dataDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					dataDir = "/var/lib/hearth"
				} else {
					dataDir = filepath.Join(home, ".local", "share")
				}
			}
			if dataDir != "/var/lib/hearth" {
				dataDir = filepath.Join(dataDir, "hearth")
			}
		}
	}

	return &ApplianceSettings{
		ConfigPath:   configDir,
		DataPath:     dataDir,
		KeystorePath: filepath.Join(dataDir, "keystore"),
		AuditLogPath: filepath.Join(dataDir, "audit.jsonl"),
	}
}

// ResetSettings re-resolves the settings, picking up environment overrides.
// Intended for tests that point HEARTH_CONFIG_DIR at a temp directory.
func ResetSettings() {
	HearthSettings = DefaultSettings()
}
