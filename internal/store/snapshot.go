package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Snapshot is a complete configuration value set, keyed by config key.
// Values are JSON types only: float64, string, bool, nil, []any, map[string]any.
type Snapshot map[string]any

// Normalize converts m to a Snapshot through a JSON round trip, so numbers
// become float64 and nested values become plain maps and slices. A
// submitted snapshot and its unchanged device echo then compare equal.
func Normalize(m map[string]any) (Snapshot, error) {
	if m == nil {
		return nil, ErrInvalidPayload
	}
	p, err := normalizePayload(m)
	if err != nil {
		return nil, err
	}
	return Snapshot(p), nil
}

func normalizePayload(m map[string]any) (Payload, error) {
	if m == nil {
		return nil, ErrInvalidPayload
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}

// DeepCopy returns an independent copy.
func (s Snapshot) DeepCopy() Snapshot {
	return Snapshot(deepCopyMap(s))
}

// Equal reports whether both snapshots hold the same keys and values.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	if len(s) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(s), map[string]any(other))
}

// Diff returns the entries of other that are missing from s or differ.
func (s Snapshot) Diff(other Snapshot) map[string]any {
	out := make(map[string]any)
	for k, v := range other {
		if cur, ok := s[k]; !ok || !reflect.DeepEqual(cur, v) {
			out[k] = deepCopyValue(v)
		}
	}
	return out
}

// Merge returns a copy of s with changes applied on top.
func (s Snapshot) Merge(changes map[string]any) Snapshot {
	out := s.DeepCopy()
	if out == nil {
		out = make(Snapshot, len(changes))
	}
	for k, v := range changes {
		out[k] = deepCopyValue(v)
	}
	return out
}

// Keys returns the keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepCopy returns an independent copy.
func (p Payload) DeepCopy() Payload {
	return Payload(deepCopyMap(p))
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Payload:
		return deepCopyMap(val)
	case Snapshot:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
