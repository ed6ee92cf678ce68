package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/hearth-sh/hearth/internal/configs"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`        // RFC3339 with microseconds.
	Appliance string `json:"appliance"` // UUID of this appliance.
	Operation string `json:"op"`        // Operation name.

	// Optional fields depending on operation.
	Device   string `json:"device,omitempty"`   // Physical device path.
	Slot     int    `json:"slot,omitempty"`     // Key slot index (add/evict/unlock).
	Slots    []int  `json:"slots,omitempty"`    // Slots attempted (unlock).
	State    string `json:"state,omitempty"`    // Furthest rotation state reached.
	Strategy string `json:"strategy,omitempty"` // Eviction strategy (manual/random).
	Unit     string `json:"unit,omitempty"`     // Service unit (start/stop/restart).
	Outcome  string `json:"outcome,omitempty"`  // ok / failed.
}

// LogPath returns the location of the audit log.
func LogPath() string {
	return configs.HearthSettings.AuditLogPath
}

// Log appends an entry to the audit log.
// If logging fails, the operation continues; key-lifecycle operations must
// never fail just because audit logging failed. Entries carry slot indices
// and states, never passphrase material.
func Log(entry Entry) {
	// Set timestamp if not already set.
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if logPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return
	}

	// Open file for appending (create if doesn't exist).
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	// Write entry with newline.
	_, _ = f.Write(append(data, '\n'))
}

// LogOperation is a convenience function that populates the appliance UUID
// from config.
func LogOperation(op, device string) Entry {
	entry := Entry{Operation: op, Device: device}

	config, err := configs.LoadApplianceConfig()
	if err != nil {
		return entry
	}
	entry.Appliance = config.Appliance.UUID

	return entry
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	logPath := LogPath()
	if logPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
