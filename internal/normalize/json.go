package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// flexString accepts a JSON string, number or boolean and keeps its text.
// Upstream feeds are inconsistent about quoting numeric fields.
type flexString struct {
	Value string
	Valid bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = flexString{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString{Value: s, Valid: true}
	case '{', '[':
		return fmt.Errorf("expected scalar, got %s", b[:1])
	default:
		*f = flexString{Value: string(b), Valid: true}
	}
	return nil
}

func (f flexString) ptr() *string {
	if !f.Valid || IsNull(f.Value) {
		return nil
	}
	v := f.Value
	return &v
}

// writeJSON encodes v indented, leaving non-ASCII and HTML characters as is.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
