package workflows

import (
	"context"

	"github.com/hearth-sh/hearth/internal/audit"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/hearth-sh/hearth/internal/system"
)

// ServiceOptions configures the service workflow.
type ServiceOptions struct {
	// Action is the systemd verb: start, stop, or restart.
	Action system.ServiceAction

	// Unit is the systemd unit name.
	Unit string

	// Runner overrides the command runner; nil uses the real tool.
	Runner luks.Runner
}

// ServiceResult contains the outcome of a service operation.
type ServiceResult struct {
	// Unit is the unit acted on.
	Unit string

	// Active reports whether the unit is active after the action.
	Active bool
}

// Service applies a systemd action to a unit and reports its resulting
// state. Typically used to bounce the consumers of a volume after an
// unlock.
func Service(ctx context.Context, opts ServiceOptions) (*ServiceResult, error) {
	r := runner(opts.Runner)
	sc := &system.ServiceControl{Runner: r}

	entry := audit.LogOperation("service/"+string(opts.Action), "")
	entry.Unit = opts.Unit

	if err := sc.Apply(ctx, opts.Action, opts.Unit); err != nil {
		entry.Outcome = "error"
		audit.Log(entry)
		return nil, err
	}

	entry.Outcome = "ok"
	audit.Log(entry)

	active, err := sc.IsActive(ctx, opts.Unit)
	if err != nil {
		// The action itself succeeded; state query failure is not fatal.
		return &ServiceResult{Unit: opts.Unit}, nil
	}

	return &ServiceResult{Unit: opts.Unit, Active: active}, nil
}
