package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// volatileFields never contribute to a cache key. They change on every
// request without changing what the AI would say.
var volatileFields = map[string]struct{}{
	"timestamp":  {},
	"created_at": {},
	"updated_at": {},
	"id":         {},
}

// Canonicalize renders fields as JSON with sorted keys and every volatile field
// removed at any depth. Two maps that differ only in key order or volatile
// fields produce identical bytes.
func Canonicalize(fields map[string]any) ([]byte, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}

	// encoding/json writes map keys in sorted order
	out, err := json.Marshal(stripVolatile(generic))
	if err != nil {
		return nil, fmt.Errorf("marshal canonical fields: %w", err)
	}
	return out, nil
}

func stripVolatile(v any) any {
	switch t := v.(type) {
	case map[string]any:
		clean := make(map[string]any, len(t))
		for k, val := range t {
			if _, skip := volatileFields[k]; skip {
				continue
			}
			clean[k] = stripVolatile(val)
		}
		return clean
	case []any:
		clean := make([]any, len(t))
		for i, val := range t {
			clean[i] = stripVolatile(val)
		}
		return clean
	default:
		return v
	}
}

// MakeKey derives the cache key for a request of the given kind.
// The result has the form "<kind>:<sha256 of canonical fields>".
func MakeKey(kind string, fields map[string]any) string {
	canonical, err := Canonicalize(fields)
	if err != nil {
		// fmt prints maps with sorted keys, so this stays order independent
		canonical = []byte(fmt.Sprintf("%v", fields))
	}
	sum := sha256.Sum256(canonical)
	return kind + ":" + hex.EncodeToString(sum[:])
}
