// Package configs manages appliance configuration for Hearth.
//
// Configuration is stored in TOML format. On a deployed appliance the
// config lives at /etc/hearth/config.toml with data (keystore, audit log)
// under /var/lib/hearth; when running unprivileged, XDG-style user
// directories are used instead so development never touches /etc.
//
// # Appliance Configuration
//
// The appliance config stores:
//   - Appliance identity (name, UUID)
//   - Device aliases (friendly name -> block-device path)
//   - Known encrypted volumes (device, mapper name, registration time)
//
// The appliance UUID is auto-generated on first use and identifies this
// appliance in audit entries.
//
// # Settings
//
// Global settings are initialized at startup into HearthSettings: the
// config directory, data directory, keystore path, and audit log path.
// HEARTH_CONFIG_DIR and HEARTH_DATA_DIR override the resolution; tests
// point them at temp directories and call ResetSettings().
package configs
