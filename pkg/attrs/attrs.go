// Package attrs reads slog-style key/value attribute lists.
package attrs

import "fmt"

// ExtractString returns the value stored under key in a [k1, v1, k2, v2, ...]
// list. Strings are returned as-is and fmt.Stringer values are rendered.
// It returns "" when the key is absent or the value is neither.
func ExtractString(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}

// ToMap collects the pairs into a map, skipping non-string keys and any key
// in omit. A trailing key without a value is dropped.
func ToMap(attrs []any, omit ...string) map[string]any {
	skip := make(map[string]struct{}, len(omit))
	for _, k := range omit {
		skip[k] = struct{}{}
	}
	out := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if _, drop := skip[k]; drop {
			continue
		}
		out[k] = attrs[i+1]
	}
	return out
}
