package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// encodeJSON stores v as text so both the postgres jsonb columns and sqlite accept it.
func encodeJSON(v any) (driver.Value, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// decodeJSON fills dest from a json column read back as text or bytes. NULL
// and blank values leave dest as it was.
func decodeJSON(column string, src, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%s: cannot scan %T", column, src)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s: %w", column, err)
	}
	return nil
}
