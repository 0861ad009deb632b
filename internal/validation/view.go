package validation

import "sort"

// View is a read-only configuration snapshot handed to composite rules.
// It is built once and never modified.
type View struct {
	values map[string]any
}

// NewView merges changes over base into a new View. Neither input is retained.
func NewView(base, changes map[string]any) View {
	values := make(map[string]any, len(base)+len(changes))
	for k, v := range base {
		values[k] = v
	}
	for k, v := range changes {
		values[k] = v
	}
	return View{values: values}
}

// Get returns the value for key.
func (v View) Get(key string) (any, bool) {
	val, ok := v.values[key]
	return val, ok
}

// String returns the value for key if it is a string.
func (v View) String(key string) (string, bool) {
	s, ok := v.values[key].(string)
	return s, ok
}

// Bool returns the value for key if it is a bool.
func (v View) Bool(key string) (bool, bool) {
	b, ok := v.values[key].(bool)
	return b, ok
}

// Keys returns the keys in sorted order.
func (v View) Keys() []string {
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (v View) Len() int {
	return len(v.values)
}
