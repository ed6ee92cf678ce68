package system

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hearth-sh/hearth/internal/luks"
)

const systemctlTimeout = 60 * time.Second

// ServiceAction is a systemd verb applied to a unit.
type ServiceAction string

const (
	ActionStart   ServiceAction = "start"
	ActionStop    ServiceAction = "stop"
	ActionRestart ServiceAction = "restart"
)

// ServiceControl runs systemd actions for the units that consume the
// appliance's unlocked volumes.
type ServiceControl struct {
	Runner luks.Runner
}

// Apply runs the given action against unit.
func (sc *ServiceControl) Apply(ctx context.Context, action ServiceAction, unit string) error {
	switch action {
	case ActionStart, ActionStop, ActionRestart:
	default:
		return fmt.Errorf("unsupported service action %q", action)
	}

	res, err := sc.Runner.Run(ctx, []string{"systemctl", string(action), unit}, nil, systemctlTimeout)
	if err != nil {
		return fmt.Errorf("running systemctl %s %s: %w", action, unit, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("systemctl %s %s exited with status %d: %s", action, unit, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	return nil
}

// IsActive reports whether unit is currently active. A cleanly inactive
// unit is a false result, not an error; systemctl reserves exit 0 for
// active and uses the output to say why otherwise.
func (sc *ServiceControl) IsActive(ctx context.Context, unit string) (bool, error) {
	res, err := sc.Runner.Run(ctx, []string{"systemctl", "is-active", unit}, nil, systemctlTimeout)
	if err != nil {
		return false, fmt.Errorf("querying systemctl is-active %s: %w", unit, err)
	}
	return res.ExitCode == 0 && strings.TrimSpace(string(res.Stdout)) == "active", nil
}
