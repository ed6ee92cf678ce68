package system

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearth-sh/hearth/internal/luks"
)

const lsblkTimeout = 15 * time.Second

// BlockDevice is one node of the lsblk device tree.
type BlockDevice struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Type       string        `json:"type"`
	Size       string        `json:"size"`
	FSType     string        `json:"fstype"`
	Label      string        `json:"label"`
	MountPoint string        `json:"mountpoint"`
	Children   []BlockDevice `json:"children,omitempty"`
}

// Encrypted reports whether the device carries an encryption header.
func (d *BlockDevice) Encrypted() bool {
	return d.FSType == "crypto_LUKS"
}

// Mapped returns the decrypted device-mapper view opened on top of this
// device, or nil when the volume is locked.
func (d *BlockDevice) Mapped() *BlockDevice {
	for i := range d.Children {
		if d.Children[i].Type == "crypt" {
			return &d.Children[i]
		}
	}
	return nil
}

// ListDisks returns the block-device tree as reported by lsblk.
func ListDisks(ctx context.Context, r luks.Runner) ([]BlockDevice, error) {
	argv := []string{"lsblk", "--json", "--output", "NAME,PATH,TYPE,SIZE,FSTYPE,LABEL,MOUNTPOINT"}
	res, err := r.Run(ctx, argv, nil, lsblkTimeout)
	if err != nil {
		return nil, fmt.Errorf("listing block devices: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("lsblk exited with status %d: %s", res.ExitCode, res.Stderr)
	}

	var parsed struct {
		BlockDevices []BlockDevice `json:"blockdevices"`
	}
	if err := json.Unmarshal(res.Stdout, &parsed); err != nil {
		return nil, fmt.Errorf("parsing lsblk output: %w", err)
	}

	return parsed.BlockDevices, nil
}

// EncryptedVolumes walks the tree and returns every device carrying an
// encryption header, at any nesting depth.
func EncryptedVolumes(devices []BlockDevice) []BlockDevice {
	var found []BlockDevice
	for _, d := range devices {
		if d.Encrypted() {
			found = append(found, d)
		}
		found = append(found, EncryptedVolumes(d.Children)...)
	}
	return found
}

// FindByLabel walks the tree for a device with the given filesystem label.
func FindByLabel(devices []BlockDevice, label string) *BlockDevice {
	for i := range devices {
		if devices[i].Label == label {
			return &devices[i]
		}
		if found := FindByLabel(devices[i].Children, label); found != nil {
			return found
		}
	}
	return nil
}
