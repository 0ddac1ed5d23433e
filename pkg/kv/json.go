package kv

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes v the way values are persisted: no HTML escaping, so
// links keep a literal '&', and no trailing newline.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
