package validation

import (
	"sort"

	"github.com/nerrad567/pixelpanel/internal/reference"
)

// readOnly keys are reported by the device but cannot be set.
var readOnly = map[string]struct{}{
	"version":   {},
	"isESP8266": {},
}

// Messages for keys that have no rules.
const (
	msgUnknownField = "Unknown setting."
	msgReadOnly     = "Read-only."
)

// DefaultSchema maps every writable PixelIt config key to its rules.
func DefaultSchema() map[string][]Rule {
	s := map[string][]Rule{
		// Matrix
		"matrixBrightness":          {Required, NonNegative, ByteRange},
		"matrixBrightnessAutomatic": {Boolean},
		"mbaDimMin":                 {Required, NonNegative, ByteRange},
		"mbaDimMax":                 {Required, NonNegative, ByteRange},
		"mbaLuxMin":                 {Required, NonNegative},
		"mbaLuxMax":                 {Required, NonNegative},
		"matrixType":                {Required, MatrixType},
		"matrixTempCorrection":      {Required, ColorCorrection},

		// General
		"note":                   {Text},
		"hostname":               {Text, ShortText, Hostname},
		"temperatureUnit":        {Required, Binary},
		"bootScreenAktiv":        {Boolean},
		"scrollTextDefaultDelay": {Required, NonNegative},
		"initialVolume":          {Required, Volume},

		// MQTT
		"mqttAktiv":       {Boolean},
		"mqttUser":        {Text},
		"mqttPassword":    {Text},
		"mqttServer":      {Text},
		"mqttMasterTopic": {Text},
		"mqttPort":        {Required, Port},

		// Clock
		"ntpServer":                  {Required, Text},
		"clockTimeZone":              {Required, OffsetMin, OffsetMax},
		"clockColor":                 {Required, HexColor},
		"clockSwitchAktiv":           {Boolean},
		"clockSwitchSec":             {Required, NonNegative},
		"clock24Hours":               {Boolean},
		"clockDayLightSaving":        {Boolean},
		"clockWithSeconds":           {Boolean},
		"clockAutoFallbackActive":    {Boolean},
		"clockAutoFallbackTime":      {Required, NonNegative},
		"clockAutoFallbackAnimation": {Required, NonNegative},
		"clockDateDayMonth":          {Boolean},
		"clockDayOfWeekFirstMonday":  {Boolean},

		// Sensor offsets
		"luxOffset":         {Required, Number},
		"temperatureOffset": {Required, Number},
		"humidityOffset":    {Required, Number},
		"pressureOffset":    {Required, Number},
		"gasOffset":         {Required, Number},

		// Light sensor
		"ldrDevice":    {Required, LightSensor},
		"ldrPulldown":  {Required, NonNegative},
		"ldrSmoothing": {Required, NonNegative},
	}

	for _, role := range reference.PinRoles() {
		s[role.Key] = []Rule{Required, Pin}
	}
	for i := range reference.ButtonCount {
		s[reference.ButtonKey(i, "Enabled")] = []Rule{Boolean}
		s[reference.ButtonKey(i, "PressedLevel")] = []Rule{Required, Binary}
		s[reference.ButtonKey(i, "Action")] = []Rule{Required, ButtonAction}
	}

	return s
}

// DefaultComposites returns the cross-field rules for PixelIt configs.
func DefaultComposites() []CompositeRule {
	return []CompositeRule{PinUniqueness, MQTTSettings, BrightnessBounds}
}

// FieldInfo describes the rules on one key, for API consumers.
type FieldInfo struct {
	Key   string   `json:"key"`
	Rules []string `json:"rules"`
}

func describe(schema map[string][]Rule) []FieldInfo {
	out := make([]FieldInfo, 0, len(schema))
	for key, rules := range schema {
		names := make([]string, len(rules))
		for i, r := range rules {
			names[i] = r.Name
		}
		out = append(out, FieldInfo{Key: key, Rules: names})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
