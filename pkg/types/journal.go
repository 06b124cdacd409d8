package types

import (
	"database/sql/driver"
	"time"
)

// JournalEntry is one lifecycle event on a shift.
type JournalEntry struct {
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Method    string         `json:"method"`
	Notes     string         `json:"notes,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Journal is the append-only shifts.journal array.
type Journal []JournalEntry

// Append returns a copy with entry added at the end.
func (j Journal) Append(entry JournalEntry) Journal {
	out := make(Journal, 0, len(j)+1)
	out = append(out, j...)
	return append(out, entry)
}

func (j Journal) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	return encodeJSON([]JournalEntry(j))
}

func (j *Journal) Scan(value any) error {
	decoded := Journal{}
	if err := decodeJSON("journal", value, &decoded); err != nil {
		return err
	}
	*j = decoded
	return nil
}
