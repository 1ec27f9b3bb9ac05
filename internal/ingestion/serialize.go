package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
)

// Serialize renders stored values as a JSON object. Keys follow schema
// declaration order and only stored fields appear; a field with one value is
// written as a scalar, several values as an array. Fields without values are
// left out.
func Serialize(s *schema.Schema, values map[string][]string) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, e := range s.Fields() {
		if s.Shadowed(e.Field) || !e.Stored() {
			continue
		}
		vals := values[e.Name]
		if len(vals) == 0 {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(e.Name)
		if err != nil {
			return "", fmt.Errorf("encoding field name %q: %w", e.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v []byte
		if len(vals) == 1 {
			v, err = json.Marshal(vals[0])
		} else {
			v, err = json.Marshal(vals)
		}
		if err != nil {
			return "", fmt.Errorf("encoding field %q: %w", e.Name, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
