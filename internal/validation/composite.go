package validation

import (
	"fmt"

	"github.com/nerrad567/pixelpanel/internal/reference"
)

// FieldError attaches a message to one config key.
type FieldError struct {
	Field   string
	Message string
}

// CompositeRule checks relationships between fields of a whole snapshot.
type CompositeRule struct {
	Name  string
	Check func(View) []FieldError
}

// PinUniqueness reports every pin role that shares a physical pin with
// another role, unless the pair is allowed to share. Buttons that are not
// enabled do not claim a pin. Unknown pin values are left to the Pin rule.
var PinUniqueness = CompositeRule{Name: "pin_uniqueness", Check: checkPinUniqueness}

func checkPinUniqueness(v View) []FieldError {
	type claim struct {
		role reference.PinRole
		pin  string
	}

	var claims []claim
	for _, role := range reference.PinRoles() {
		if role.EnabledKey != "" {
			if enabled, _ := v.Bool(role.EnabledKey); !enabled {
				continue
			}
		}
		pin, ok := v.String(role.Key)
		if !ok || !reference.IsPin(pin) {
			continue
		}
		claims = append(claims, claim{role: role, pin: pin})
	}

	var errs []FieldError
	for i, a := range claims {
		for j, b := range claims {
			if i == j || a.pin != b.pin || reference.MayShare(a.role.Key, b.role.Key) {
				continue
			}
			errs = append(errs, FieldError{
				Field:   a.role.Key,
				Message: fmt.Sprintf("%s is already used by %s", a.pin, b.role.Label),
			})
		}
	}
	return errs
}

// MQTTSettings requires a broker and topic once MQTT is switched on.
var MQTTSettings = CompositeRule{Name: "mqtt_settings", Check: func(v View) []FieldError {
	if active, _ := v.Bool("mqttAktiv"); !active {
		return nil
	}
	var errs []FieldError
	for _, key := range []string{"mqttServer", "mqttMasterTopic"} {
		val, _ := v.Get(key)
		if !isPresent(val) {
			errs = append(errs, FieldError{Field: key, Message: Required.Message})
		}
	}
	return errs
}}

// BrightnessBounds keeps the automatic brightness window ordered.
var BrightnessBounds = CompositeRule{Name: "brightness_bounds", Check: func(v View) []FieldError {
	var errs []FieldError
	pairs := [][2]string{{"mbaDimMin", "mbaDimMax"}, {"mbaLuxMin", "mbaLuxMax"}}
	for _, p := range pairs {
		lo, _ := v.Get(p[0])
		hi, _ := v.Get(p[1])
		loF, ok1 := toFloat(lo)
		hiF, ok2 := toFloat(hi)
		if ok1 && ok2 && loF > hiF {
			errs = append(errs,
				FieldError{Field: p[0], Message: fmt.Sprintf("Must be ≤ %s", p[1])},
				FieldError{Field: p[1], Message: fmt.Sprintf("Must be ≥ %s", p[0])},
			)
		}
	}
	return errs
}}
