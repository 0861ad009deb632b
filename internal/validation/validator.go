package validation

import "sort"

// Validator evaluates field rules and composite rules against config edits.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema     map[string][]Rule
	composites []CompositeRule
}

// New returns a Validator with the PixelIt schema and composite rules.
func New() *Validator {
	return NewWithSchema(DefaultSchema(), DefaultComposites())
}

// NewWithSchema returns a Validator with custom rules.
func NewWithSchema(schema map[string][]Rule, composites []CompositeRule) *Validator {
	return &Validator{schema: schema, composites: composites}
}

// ValidateField evaluates every rule on key and returns the failure messages.
// Unknown keys fail with a single message.
func (v *Validator) ValidateField(key string, value any) []string {
	if _, ok := readOnly[key]; ok {
		return []string{msgReadOnly}
	}
	rules, ok := v.schema[key]
	if !ok {
		return []string{msgUnknownField}
	}
	var msgs []string
	for _, r := range rules {
		if msg, ok := r.Apply(value); !ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Validate checks changes against base, the current confirmed snapshot.
//
// Every changed field is evaluated against its rules. Composite rules see
// base with changes merged in. A composite finding is reported when it sits
// on a changed field or when base alone does not produce it, so enabling a
// gating field (btn1Enabled, mqttAktiv) surfaces the conflict it exposes
// while a pre-existing problem on the device does not block unrelated
// edits. Returns *Error (wrapping ErrValidationFailed) or nil.
func (v *Validator) Validate(base, changes map[string]any) error {
	verr := &Error{}

	for key, value := range changes {
		for _, msg := range v.ValidateField(key, value) {
			verr.add(key, msg)
		}
	}

	before := NewView(base, nil)
	after := NewView(base, changes)
	for _, c := range v.composites {
		existing := make(map[FieldError]struct{})
		for _, fe := range c.Check(before) {
			existing[fe] = struct{}{}
		}
		for _, fe := range c.Check(after) {
			_, changed := changes[fe.Field]
			_, preexisting := existing[fe]
			if changed || !preexisting {
				verr.add(fe.Field, fe.Message)
			}
		}
	}

	return verr.orNil()
}

// ValidateSnapshot checks a complete configuration, such as a device echo
// or a file. Read-only keys are ignored; composite findings are reported
// for every field.
func (v *Validator) ValidateSnapshot(snapshot map[string]any) error {
	verr := &Error{}

	for key, value := range snapshot {
		if _, ok := readOnly[key]; ok {
			continue
		}
		for _, msg := range v.ValidateField(key, value) {
			verr.add(key, msg)
		}
	}

	view := NewView(snapshot, nil)
	for _, c := range v.composites {
		for _, fe := range c.Check(view) {
			verr.add(fe.Field, fe.Message)
		}
	}

	return verr.orNil()
}

// Fields returns the rule names per key, sorted by key.
func (v *Validator) Fields() []FieldInfo {
	return describe(v.schema)
}

// Keys returns the writable keys in sorted order.
func (v *Validator) Keys() []string {
	keys := make([]string, 0, len(v.schema))
	for k := range v.schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
