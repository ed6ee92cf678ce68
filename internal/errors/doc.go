// Package errors provides typed error values for the Hearth application.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. This makes
// error handling more robust and refactoring-safe.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Probe errors: The volume header could not be read (ErrSlotProbeFailed)
//   - Key slot errors: A mutation was rejected (ErrAuthenticationFailed)
//   - Device errors: The target device is unknown (ErrDeviceNotFound)
//   - Operation errors: Appliance coordination failed (ErrOperationInFlight)
//
// # Usage
//
// Return errors from internal packages:
//
//	if !inventory.Occupied(slot) {
//	    return herrors.ErrSlotNotOccupied
//	}
//
// Handle errors in the CLI layer:
//
//	result, err := workflows.Rotate(ctx, opts)
//	if errors.Is(err, herrors.ErrAuthenticationFailed) {
//	    // Show user-friendly message
//	}
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("destroying slot %d: %w", slot, herrors.ErrSlotNotOccupied)
package errors
