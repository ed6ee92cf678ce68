package luks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	herrors "github.com/hearth-sh/hearth/internal/errors"
)

// Slot capacities by header format version. LUKS1 headers always carry 8
// slots; 32 is cryptsetup's compiled-in maximum for LUKS2, which also
// formats 32 by default. The v2 parser trusts what the header actually
// lists, so a header formatted with a smaller keyslots area still probes
// consistently.
const (
	FormatV1Capacity = 8
	FormatV2Capacity = 32
)

// SlotInventory is the parsed keyslot occupancy of one volume header.
// It is a transient per-request value; nothing caches it across
// operations.
type SlotInventory struct {
	Device string

	// IsEncrypted is false when the device carries no recognized
	// encryption header. That is a valid "no" answer, not an error; all
	// other fields are zero in that case.
	IsEncrypted bool

	UUID     string
	Version  int
	Capacity int

	// Used and Available are ascending slot indices. Their lengths always
	// sum to Capacity.
	Used      []int
	Available []int
}

// Occupied reports whether slot holds a key.
func (inv *SlotInventory) Occupied(slot int) bool {
	for _, s := range inv.Used {
		if s == slot {
			return true
		}
	}
	return false
}

// LowestAvailable returns the lowest empty slot index.
// Returns ErrNoAvailableSlots when every slot is occupied.
func (inv *SlotInventory) LowestAvailable() (int, error) {
	if len(inv.Available) == 0 {
		return 0, herrors.ErrNoAvailableSlots
	}
	return inv.Available[0], nil
}

var (
	versionRe = regexp.MustCompile(`(?m)^Version:\s+(\d+)`)
	uuidRe    = regexp.MustCompile(`(?m)^UUID:\s+(\S+)`)
	v1SlotRe  = regexp.MustCompile(`(?m)^Key Slot (\d+): (ENABLED|DISABLED)`)
	v2SlotRe  = regexp.MustCompile(`^  (\d+): \S+`)
)

// Probe dumps and parses the volume header of device. The device must be
// the physical encrypted device (see Resolver); a mapped view has no
// header of its own.
//
// A device without an encryption header is a soft result: IsEncrypted is
// false and the error is nil. Callers must check IsEncrypted before
// treating the inventory as meaningful.
func Probe(ctx context.Context, r Runner, device string) (*SlotInventory, error) {
	res, err := r.Run(ctx, []string{cryptsetupBin, "luksDump", device}, nil, probeTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herrors.ErrSlotProbeFailed, err)
	}

	if res.ExitCode != 0 {
		combined := string(res.Stderr) + string(res.Stdout)
		if strings.Contains(combined, "not a valid LUKS") {
			return &SlotInventory{Device: device, IsEncrypted: false}, nil
		}
		return nil, fmt.Errorf("%w: %v", herrors.ErrSlotProbeFailed, toolError(res))
	}

	return parseHeaderDump(device, string(res.Stdout))
}

func parseHeaderDump(device, dump string) (*SlotInventory, error) {
	if !strings.Contains(dump, "LUKS header information") {
		return &SlotInventory{Device: device, IsEncrypted: false}, nil
	}

	versionMatch := versionRe.FindStringSubmatch(dump)
	if versionMatch == nil {
		return nil, fmt.Errorf("%w: header dump has no version field", herrors.ErrSlotProbeFailed)
	}
	version, err := strconv.Atoi(versionMatch[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad version %q", herrors.ErrSlotProbeFailed, versionMatch[1])
	}

	inv := &SlotInventory{Device: device, IsEncrypted: true, Version: version}
	if uuidMatch := uuidRe.FindStringSubmatch(dump); uuidMatch != nil {
		inv.UUID = uuidMatch[1]
	}

	switch version {
	case 1:
		inv.Capacity = FormatV1Capacity
		inv.Used = parseV1Slots(dump)
	case 2:
		inv.Capacity = FormatV2Capacity
		inv.Used = parseV2Slots(dump)
	default:
		return nil, fmt.Errorf("%w: version %d", herrors.ErrUnknownFormatVersion, version)
	}

	sort.Ints(inv.Used)
	used := make(map[int]bool, len(inv.Used))
	for _, s := range inv.Used {
		used[s] = true
	}
	for s := 0; s < inv.Capacity; s++ {
		if !used[s] {
			inv.Available = append(inv.Available, s)
		}
	}

	return inv, nil
}

// parseV1Slots reads LUKS1 slot lines of the form "Key Slot 3: ENABLED".
func parseV1Slots(dump string) []int {
	var used []int
	for _, m := range v1SlotRe.FindAllStringSubmatch(dump, -1) {
		if m[2] != "ENABLED" {
			continue
		}
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		used = append(used, slot)
	}
	return used
}

// parseV2Slots reads the "Keyslots:" section of a LUKS2 dump. A slot entry
// is an index line ("  1: luks2") followed by a deeper-indented attribute
// block; the slot is occupied when that block carries any of the key
// material attributes before the next top-level section starts.
func parseV2Slots(dump string) []int {
	var used []int
	inKeyslots := false
	current := -1
	currentOccupied := false

	flush := func() {
		if current >= 0 && currentOccupied {
			used = append(used, current)
		}
		current = -1
		currentOccupied = false
	}

	for _, line := range strings.Split(dump, "\n") {
		if !inKeyslots {
			if strings.HasPrefix(line, "Keyslots:") {
				inKeyslots = true
			}
			continue
		}

		// A new top-level section ("Tokens:", "Digests:", ...) ends the
		// keyslot listing.
		if line != "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			break
		}

		if m := v2SlotRe.FindStringSubmatch(line); m != nil {
			flush()
			// Indices at or past the capacity cannot be addressed by any
			// slot operation and would break used+available accounting.
			if slot, err := strconv.Atoi(m[1]); err == nil && slot < FormatV2Capacity {
				current = slot
			}
			continue
		}

		if current < 0 {
			continue
		}
		attr := strings.TrimSpace(line)
		if strings.HasPrefix(attr, "Key:") || strings.HasPrefix(attr, "Priority:") || strings.HasPrefix(attr, "Cipher:") {
			currentOccupied = true
		}
	}
	flush()

	return used
}
