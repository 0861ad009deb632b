package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrValidationFailed is wrapped by every *Error.
var ErrValidationFailed = errors.New("validation: failed")

// Error carries per-field failure messages.
type Error struct {
	Fields map[string][]string `json:"fields"`
}

// Error lists the failing fields in key order.
func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

// Unwrap allows errors.Is(err, ErrValidationFailed).
func (e *Error) Unwrap() error {
	return ErrValidationFailed
}

func (e *Error) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	for _, existing := range e.Fields[field] {
		if existing == msg {
			return
		}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *Error) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
