package workflows

import (
	"fmt"
	"sync"

	herrors "github.com/hearth-sh/hearth/internal/errors"
)

// inflight tracks physical devices with an operation underway. Slot
// mutations on the same header must never interleave; rather than
// queue, a second caller is rejected outright.
var inflight = struct {
	sync.Mutex
	devices map[string]bool
}{devices: make(map[string]bool)}

// acquireDevice marks device busy, failing if it already is. The
// returned release func must be called when the operation finishes.
func acquireDevice(device string) (func(), error) {
	inflight.Lock()
	defer inflight.Unlock()

	if inflight.devices[device] {
		return nil, fmt.Errorf("%s: %w", device, herrors.ErrOperationInFlight)
	}
	inflight.devices[device] = true

	return func() {
		inflight.Lock()
		defer inflight.Unlock()
		delete(inflight.devices, device)
	}, nil
}
