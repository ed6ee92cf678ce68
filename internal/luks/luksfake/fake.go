package luksfake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hearth-sh/hearth/internal/luks"
)

// Volume is an in-memory stand-in for one encrypted volume header.
type Volume struct {
	Version int
	UUID    string
	// Slots maps occupied slot index to its passphrase.
	Slots map[int]string
}

// Capacity returns the slot capacity for the volume's format version.
func (v *Volume) Capacity() int {
	if v.Version == 1 {
		return luks.FormatV1Capacity
	}
	return luks.FormatV2Capacity
}

// Authenticates reports whether any occupied slot holds passphrase.
func (v *Volume) Authenticates(passphrase string) bool {
	for _, p := range v.Slots {
		if p == passphrase {
			return true
		}
	}
	return false
}

// Call records one command invocation.
type Call struct {
	Argv  []string
	Stdin string
}

// Cryptsetup emulates the encryption tool's slot semantics behind the
// luks.Runner interface, so protocol logic can be exercised without a
// real volume or root privileges.
type Cryptsetup struct {
	// Volumes maps physical device path to its header state.
	Volumes map[string]*Volume

	// Mappings maps active mapper names to their backing physical device,
	// for "status" queries.
	Mappings map[string]string

	// Activated records "open" activations performed (name -> device).
	Activated map[string]string

	// Calls is the invocation log, in order.
	Calls []Call

	// Intercept, when set, inspects each call before it executes and may
	// fail it by returning a non-nil result. Used to inject step
	// failures into protocol runs.
	Intercept func(call Call) *luks.CommandResult
}

// New returns an empty fake.
func New() *Cryptsetup {
	return &Cryptsetup{
		Volumes:   make(map[string]*Volume),
		Mappings:  make(map[string]string),
		Activated: make(map[string]string),
	}
}

// AddVolume registers a volume with the given occupied slots.
func (f *Cryptsetup) AddVolume(device string, version int, slots map[int]string) *Volume {
	v := &Volume{
		Version: version,
		UUID:    fmt.Sprintf("00000000-0000-0000-0000-%012d", len(f.Volumes)+1),
		Slots:   make(map[int]string),
	}
	for s, p := range slots {
		v.Slots[s] = p
	}
	f.Volumes[device] = v
	return v
}

func (f *Cryptsetup) Run(ctx context.Context, argv []string, stdin []byte, timeout time.Duration) (*luks.CommandResult, error) {
	call := Call{Argv: argv, Stdin: string(stdin)}
	f.Calls = append(f.Calls, call)

	if f.Intercept != nil {
		if res := f.Intercept(call); res != nil {
			return res, nil
		}
	}

	if len(argv) < 2 || argv[0] != "cryptsetup" {
		return nil, fmt.Errorf("luksfake: unexpected command %v", argv)
	}

	switch argv[1] {
	case "luksDump":
		return f.dump(argv[len(argv)-1])
	case "luksAddKey":
		return f.addKey(call)
	case "luksKillSlot":
		return f.killSlot(call)
	case "open":
		return f.open(call)
	case "status":
		return f.status(argv[len(argv)-1])
	}
	return nil, fmt.Errorf("luksfake: unsupported verb %q", argv[1])
}

func (f *Cryptsetup) dump(device string) (*luks.CommandResult, error) {
	vol, ok := f.Volumes[device]
	if !ok {
		return fail(1, "Device %s is not a valid LUKS device.", device), nil
	}

	var b strings.Builder
	if vol.Version == 1 {
		fmt.Fprintf(&b, "LUKS header information for %s\n\n", device)
		fmt.Fprintf(&b, "Version:        %d\n", vol.Version)
		fmt.Fprintf(&b, "Cipher name:    aes\n")
		fmt.Fprintf(&b, "UUID:           %s\n\n", vol.UUID)
		for s := 0; s < vol.Capacity(); s++ {
			state := "DISABLED"
			if _, ok := vol.Slots[s]; ok {
				state = "ENABLED"
			}
			fmt.Fprintf(&b, "Key Slot %d: %s\n", s, state)
		}
		return &luks.CommandResult{Stdout: []byte(b.String())}, nil
	}

	fmt.Fprintf(&b, "LUKS header information\n")
	fmt.Fprintf(&b, "Version:       \t%d\n", vol.Version)
	fmt.Fprintf(&b, "Epoch:         \t3\n")
	fmt.Fprintf(&b, "Metadata area: \t16384 [bytes]\n")
	fmt.Fprintf(&b, "UUID:          \t%s\n", vol.UUID)
	fmt.Fprintf(&b, "Label:         \t(no label)\n\n")
	fmt.Fprintf(&b, "Data segments:\n  0: crypt\n\toffset: 16777216 [bytes]\n\tlength: (whole device)\n\n")
	fmt.Fprintf(&b, "Keyslots:\n")
	var slots []int
	for s := range vol.Slots {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	for _, s := range slots {
		fmt.Fprintf(&b, "  %d: luks2\n", s)
		fmt.Fprintf(&b, "\tKey:        512 bits\n")
		fmt.Fprintf(&b, "\tPriority:   normal\n")
		fmt.Fprintf(&b, "\tCipher:     aes-xts-plain64\n")
	}
	fmt.Fprintf(&b, "Tokens:\nDigests:\n  0: pbkdf2\n")
	return &luks.CommandResult{Stdout: []byte(b.String())}, nil
}

func (f *Cryptsetup) addKey(call Call) (*luks.CommandResult, error) {
	device := call.Argv[len(call.Argv)-1]
	vol, ok := f.Volumes[device]
	if !ok {
		return fail(1, "Device %s is not a valid LUKS device.", device), nil
	}

	slot, err := flagValue(call.Argv, "--key-slot")
	if err != nil {
		return nil, err
	}
	if _, occupied := vol.Slots[slot]; occupied {
		return fail(1, "Key slot %d is full, please select another one.", slot), nil
	}
	if slot < 0 || slot >= vol.Capacity() {
		return fail(1, "Key slot %d is invalid.", slot), nil
	}

	lines := strings.Split(call.Stdin, "\n")
	if len(vol.Slots) == 0 {
		// Freshly formatted header: no authenticating passphrase expected.
		vol.Slots[slot] = lines[0]
		return &luks.CommandResult{}, nil
	}

	if !vol.Authenticates(lines[0]) {
		return fail(2, "No key available with this passphrase."), nil
	}
	if len(lines) < 3 || lines[1] != lines[2] {
		return fail(1, "Passphrases do not match."), nil
	}
	vol.Slots[slot] = lines[1]
	return &luks.CommandResult{}, nil
}

func (f *Cryptsetup) killSlot(call Call) (*luks.CommandResult, error) {
	device := call.Argv[len(call.Argv)-2]
	vol, ok := f.Volumes[device]
	if !ok {
		return fail(1, "Device %s is not a valid LUKS device.", device), nil
	}

	var slot int
	if _, err := fmt.Sscanf(call.Argv[len(call.Argv)-1], "%d", &slot); err != nil {
		return nil, fmt.Errorf("luksfake: bad slot argument %q", call.Argv[len(call.Argv)-1])
	}
	if _, occupied := vol.Slots[slot]; !occupied {
		return fail(1, "Keyslot %d is not active.", slot), nil
	}

	auth := strings.Split(call.Stdin, "\n")[0]
	if !vol.Authenticates(auth) {
		return fail(2, "No key available with this passphrase."), nil
	}

	delete(vol.Slots, slot)
	return &luks.CommandResult{}, nil
}

func (f *Cryptsetup) open(call Call) (*luks.CommandResult, error) {
	device := ""
	testOnly := false
	for _, a := range call.Argv {
		if a == "--test-passphrase" {
			testOnly = true
		}
	}
	if testOnly {
		device = call.Argv[len(call.Argv)-1]
	} else {
		device = call.Argv[len(call.Argv)-2]
	}

	vol, ok := f.Volumes[device]
	if !ok {
		return fail(1, "Device %s is not a valid LUKS device.", device), nil
	}

	slot, err := flagValue(call.Argv, "--key-slot")
	if err != nil {
		return nil, err
	}
	passphrase := strings.Split(call.Stdin, "\n")[0]
	if vol.Slots[slot] != passphrase {
		return fail(2, "No key available with this passphrase."), nil
	}

	if !testOnly {
		name := call.Argv[len(call.Argv)-1]
		f.Activated[name] = device
		f.Mappings[name] = device
	}
	return &luks.CommandResult{}, nil
}

func (f *Cryptsetup) status(name string) (*luks.CommandResult, error) {
	device, ok := f.Mappings[name]
	if !ok {
		return fail(4, "Device %s is not active.", name), nil
	}
	out := fmt.Sprintf("/dev/mapper/%s is active.\n  type:    LUKS2\n  cipher:  aes-xts-plain64\n  keysize: 512 bits\n  device:  %s\n", name, device)
	return &luks.CommandResult{Stdout: []byte(out)}, nil
}

func flagValue(argv []string, flag string) (int, error) {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			var v int
			if _, err := fmt.Sscanf(argv[i+1], "%d", &v); err != nil {
				return 0, fmt.Errorf("luksfake: bad %s value %q", flag, argv[i+1])
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("luksfake: missing %s in %v", flag, argv)
}

func fail(code int, format string, args ...interface{}) *luks.CommandResult {
	return &luks.CommandResult{
		ExitCode: code,
		Stderr:   []byte(fmt.Sprintf(format+"\n", args...)),
	}
}
