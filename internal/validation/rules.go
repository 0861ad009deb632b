package validation

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/pixelpanel/internal/reference"
)

// Rule is a named predicate with the message shown when it fails.
// Check must be total: it returns false for values it cannot interpret
// and never panics.
type Rule struct {
	Name    string
	Check   func(value any) bool
	Message string
}

// Apply returns the failure message and false when value does not pass.
func (r Rule) Apply(value any) (string, bool) {
	if r.Check(value) {
		return "", true
	}
	return r.Message, false
}

const (
	maxShortText = 20
	minPort      = 1
	maxPort      = 65535
	maxVolume    = 30
	maxByte      = 255
	minUTCOffset = -12
	maxUTCOffset = 14
)

var (
	emailRegex    = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)
	hostnameRegex = regexp.MustCompile(`^[0-9A-Za-z_-]*$`)
	hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Field rules.
var (
	// Required passes for any present value. Zero counts as present.
	Required = Rule{Name: "required", Check: isPresent, Message: "Required."}

	ShortText = Rule{Name: "short_text", Check: func(v any) bool {
		if v == nil {
			return true
		}
		s, ok := v.(string)
		return ok && utf8.RuneCountInString(s) <= maxShortText
	}, Message: "Max 20 characters"}

	Email = Rule{Name: "email", Check: func(v any) bool {
		s, ok := v.(string)
		return ok && emailRegex.MatchString(s)
	}, Message: "Invalid e-mail."}

	NonNegative = numeric("non_negative", func(f float64) bool { return f >= 0 }, "Must be ≥ 0")
	ByteRange   = numeric("byte_range", func(f float64) bool { return f <= maxByte }, "Must be ≤ 255")
	OffsetMin   = numeric("utc_offset_min", func(f float64) bool { return f >= minUTCOffset }, "Must be ≥ -12")
	OffsetMax   = numeric("utc_offset_max", func(f float64) bool { return f <= maxUTCOffset }, "Must be ≤ 14")
	Port        = numeric("port", func(f float64) bool { return f >= minPort && f <= maxPort }, "Must be between 1 and 65535")
	Volume      = numeric("volume", func(f float64) bool { return f > 0 && f <= maxVolume }, "Must be between 1 and 30")
	Number      = numeric("number", func(float64) bool { return true }, "Must be a number.")

	Text = Rule{Name: "text", Check: func(v any) bool {
		_, ok := v.(string)
		return ok
	}, Message: "Must be text."}

	Boolean = Rule{Name: "boolean", Check: func(v any) bool {
		_, ok := v.(bool)
		return ok
	}, Message: "Must be true or false."}

	Hostname = Rule{Name: "hostname", Check: func(v any) bool {
		s, ok := v.(string)
		return ok && hostnameRegex.MatchString(s)
	}, Message: "Only letters, digits, _ and -"}

	HexColor = Rule{Name: "hex_color", Check: func(v any) bool {
		s, ok := v.(string)
		return ok && hexColorRegex.MatchString(s)
	}, Message: "Must be a color like #RRGGBB"}

	MatrixType = integer("matrix_type", reference.IsMatrixType, "Unknown matrix type.")

	ColorCorrection = Rule{Name: "color_correction", Check: func(v any) bool {
		s, ok := v.(string)
		return ok && reference.IsColorCorrection(s)
	}, Message: "Unknown color correction."}

	LightSensor = Rule{Name: "light_sensor", Check: func(v any) bool {
		s, ok := v.(string)
		return ok && reference.IsLightSensor(s)
	}, Message: "Unknown light sensor."}

	Pin = Rule{Name: "pin", Check: func(v any) bool {
		s, ok := v.(string)
		return ok && reference.IsPin(s)
	}, Message: "Unknown pin."}

	ButtonAction = integer("button_action", reference.IsButtonAction, "Unknown button action.")

	Binary = integer("binary", func(n int) bool { return n == 0 || n == 1 }, "Must be 0 or 1.")
)

// Catalog returns every field rule keyed by name.
func Catalog() map[string]Rule {
	rules := []Rule{
		Required, ShortText, Email, NonNegative, ByteRange, OffsetMin, OffsetMax,
		Port, Volume, Number, Text, Boolean, Hostname, HexColor, MatrixType,
		ColorCorrection, LightSensor, Pin, ButtonAction, Binary,
	}
	out := make(map[string]Rule, len(rules))
	for _, r := range rules {
		out[r.Name] = r
	}
	return out
}

func numeric(name string, pred func(float64) bool, msg string) Rule {
	return Rule{Name: name, Check: func(v any) bool {
		f, ok := toFloat(v)
		return ok && pred(f)
	}, Message: msg}
}

func integer(name string, pred func(int) bool, msg string) Rule {
	return Rule{Name: name, Check: func(v any) bool {
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return false
		}
		return pred(int(f))
	}, Message: msg}
}

func isPresent(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case json.Number:
		return val != ""
	default:
		return true
	}
}

// toFloat interprets Go numbers, json.Number and numeric strings.
// NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
