// Package system provides the appliance glue around the encrypted-volume
// core: block-device inventory via lsblk and systemd unit control via
// systemctl. Both go through the same Runner abstraction as the
// encryption tool, so tests can script them.
package system
