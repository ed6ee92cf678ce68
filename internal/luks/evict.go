package luks

import (
	"crypto/rand"
	"fmt"
	"math/big"

	herrors "github.com/hearth-sh/hearth/internal/errors"
)

// EvictionStrategy chooses which occupied slot to sacrifice when a new
// passphrase must be installed on a full volume. The union is closed; the
// primary slot is never a legal choice.
type EvictionStrategy interface {
	evictionStrategy()
	// Name is the strategy identifier used in audit entries.
	Name() string
	// Pick returns the slot to evict.
	Pick(inv *SlotInventory) (int, error)
}

// ManualEviction evicts a caller-chosen slot.
type ManualEviction struct {
	Slot int
}

func (ManualEviction) evictionStrategy() {}
func (ManualEviction) Name() string      { return "manual" }

func (m ManualEviction) Pick(inv *SlotInventory) (int, error) {
	if m.Slot == primarySlot {
		return 0, fmt.Errorf("slot 0 holds the primary key and cannot be evicted: %w", herrors.ErrInvariantViolation)
	}
	if m.Slot < 0 || m.Slot >= inv.Capacity {
		return 0, fmt.Errorf("slot %d is out of range for a %d-slot volume", m.Slot, inv.Capacity)
	}
	if !inv.Occupied(m.Slot) {
		return 0, fmt.Errorf("slot %d: %w", m.Slot, herrors.ErrSlotNotOccupied)
	}
	return m.Slot, nil
}

// RandomEviction evicts a slot chosen uniformly among the occupied slots,
// excluding the primary.
type RandomEviction struct{}

func (RandomEviction) evictionStrategy() {}
func (RandomEviction) Name() string      { return "random" }

func (RandomEviction) Pick(inv *SlotInventory) (int, error) {
	var candidates []int
	for _, s := range inv.Used {
		if s != primarySlot {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return 0, herrors.ErrNoEvictableSlots
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		return 0, fmt.Errorf("choosing eviction slot: %w", err)
	}
	return candidates[n.Int64()], nil
}
