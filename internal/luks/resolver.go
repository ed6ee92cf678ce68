package luks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"golang.org/x/sys/unix"
)

// Resolver maps user-supplied device identifiers (paths, labels, config
// aliases, mapped views) to the physical encrypted device that slot
// operations must target. A decrypted mapped volume has no key slots of
// its own; the slots live on the device underneath it.
type Resolver struct {
	Runner  Runner
	Aliases map[string]string

	// DevDir is "/dev" in production; tests point it at a temp tree.
	DevDir string
}

// NewResolver returns a Resolver using the given alias table.
func NewResolver(r Runner, aliases map[string]string) *Resolver {
	return &Resolver{Runner: r, Aliases: aliases, DevDir: "/dev"}
}

// Physical resolves identifier to a physical device path.
//
// Resolution order: configured alias, then filesystem label (bare names
// are looked up under disk/by-label), then the path itself. A path that
// names a device-mapper view is followed down to its backing device.
func (rv *Resolver) Physical(ctx context.Context, identifier string) (string, error) {
	if device, ok := rv.Aliases[identifier]; ok {
		identifier = device
	}

	if !strings.HasPrefix(identifier, "/") {
		labelPath := filepath.Join(rv.DevDir, "disk", "by-label", identifier)
		resolved, err := filepath.EvalSymlinks(labelPath)
		if err != nil {
			return "", fmt.Errorf("no device with label %q: %w", identifier, herrors.ErrDeviceNotFound)
		}
		identifier = resolved
	}

	if rv.isMapped(identifier) {
		return rv.backingDevice(ctx, identifier)
	}

	return identifier, nil
}

// isMapped reports whether path names a device-mapper view rather than a
// physical device.
func (rv *Resolver) isMapped(path string) bool {
	if strings.HasPrefix(path, filepath.Join(rv.DevDir, "mapper")+"/") {
		return true
	}
	if strings.HasPrefix(filepath.Base(path), "dm-") {
		return true
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return false
	}
	// Device-mapper nodes expose a dm/ directory in sysfs.
	major := unix.Major(uint64(st.Rdev))
	minor := unix.Minor(uint64(st.Rdev))
	_, err := os.Stat(fmt.Sprintf("/sys/dev/block/%d:%d/dm", major, minor))
	return err == nil
}

// backingDevice asks the encryption tool which physical device sits under
// the mapped volume.
func (rv *Resolver) backingDevice(ctx context.Context, mapped string) (string, error) {
	name := filepath.Base(mapped)
	res, err := rv.Runner.Run(ctx, []string{cryptsetupBin, "status", name}, nil, probeTimeout)
	if err != nil {
		return "", fmt.Errorf("querying status of %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s: %v: %w", mapped, toolError(res), herrors.ErrUnderlyingDeviceResolution)
	}

	for _, line := range strings.Split(string(res.Stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "device:" {
			return fields[1], nil
		}
	}

	return "", fmt.Errorf("%s has no backing device in status output: %w", mapped, herrors.ErrUnderlyingDeviceResolution)
}
