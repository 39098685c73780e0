package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached query, e.g. Key{"chartData", "CPIAUCSL", "1m"}.
// Elements should be strings, numbers or booleans.
type Key []any

// String returns the canonical form used as the cache map key.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = encodeElem(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// HasPrefix reports whether prefix matches the leading elements of k.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if encodeElem(prefix[i]) != encodeElem(k[i]) {
			return false
		}
	}
	return true
}

// Scope is the first key element, used as a metrics label.
func (k Key) Scope() string {
	if len(k) == 0 {
		return ""
	}
	return fmt.Sprint(k[0])
}

func (k Key) clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}

func encodeElem(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(b)
}
