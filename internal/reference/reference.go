package reference

import "slices"

// MatrixType identifies the LED wiring layout of the matrix.
type MatrixType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var matrixTypes = []MatrixType{
	{ID: 1, Name: "Colums first"},
	{ID: 2, Name: "Rows first"},
	{ID: 3, Name: "Tiled 4x 8x8 CJMCU"},
}

// MatrixTypes returns the supported matrix layouts.
func MatrixTypes() []MatrixType {
	return slices.Clone(matrixTypes)
}

// IsMatrixType reports whether id is a supported layout.
func IsMatrixType(id int) bool {
	for _, m := range matrixTypes {
		if m.ID == id {
			return true
		}
	}
	return false
}

// DefaultColorCorrection leaves the LED colour uncorrected by a temperature profile.
const DefaultColorCorrection = "default"

// colorCorrections are the FastLED colour temperature presets.
var colorCorrections = []string{
	DefaultColorCorrection,
	"Candle",
	"Tungsten40W",
	"Tungsten100W",
	"Halogen",
	"CarbonArc",
	"HighNoonSun",
	"DirectSunlight",
	"OvercastSky",
	"ClearBlueSky",
	"WarmFluorescent",
	"StandardFluorescent",
	"CoolWhiteFluorescent",
	"FullSpectrumFluorescent",
	"GrowLightFluorescent",
	"BlackLightFluorescent",
	"MercuryVapor",
	"SodiumVapor",
	"MetalHalide",
	"HighPressureSodium",
	"UncorrectedTemperature",
}

// ColorCorrections returns the colour temperature profile names.
func ColorCorrections() []string {
	return slices.Clone(colorCorrections)
}

// IsColorCorrection reports whether name is a known profile.
func IsColorCorrection(name string) bool {
	return slices.Contains(colorCorrections, name)
}

// LightSensor is a photoresistor part number used for lux conversion.
type LightSensor string

// Supported LDR parts.
const (
	LightSensorGL5516  LightSensor = "GL5516"
	LightSensorGL5528  LightSensor = "GL5528"
	LightSensorGL5537a LightSensor = "GL5537_1"
	LightSensorGL5537b LightSensor = "GL5537_2"
	LightSensorGL5539  LightSensor = "GL5539"
	LightSensorGL5549  LightSensor = "GL5549"
)

// LightSensors returns the supported LDR parts.
func LightSensors() []LightSensor {
	return []LightSensor{
		LightSensorGL5516, LightSensorGL5528, LightSensorGL5537a,
		LightSensorGL5537b, LightSensorGL5539, LightSensorGL5549,
	}
}

// IsLightSensor reports whether name is a supported LDR part.
func IsLightSensor(name string) bool {
	return slices.Contains(LightSensors(), LightSensor(name))
}

// Pin is an ESP8266 (Wemos D1 mini) GPIO label as the firmware spells it.
type Pin string

// Assignable pins. D2 drives the matrix data line and cannot be reassigned.
const (
	PinD0 Pin = "Pin_D0"
	PinD1 Pin = "Pin_D1"
	PinD3 Pin = "Pin_D3"
	PinD4 Pin = "Pin_D4"
	PinD5 Pin = "Pin_D5"
	PinD6 Pin = "Pin_D6"
	PinD7 Pin = "Pin_D7"
	PinD8 Pin = "Pin_D8"
)

// Pins returns the assignable pins in board order.
func Pins() []Pin {
	return []Pin{PinD0, PinD1, PinD3, PinD4, PinD5, PinD6, PinD7, PinD8}
}

// IsPin reports whether name is an assignable pin.
func IsPin(name string) bool {
	return slices.Contains(Pins(), Pin(name))
}

// ButtonAction is what the firmware does when a hardware button is pressed.
type ButtonAction int

// Button actions, numbered as on the wire.
const (
	ButtonActionNone ButtonAction = iota
	ButtonActionGotoClock
	ButtonActionToggleSleep
	ButtonActionPlayPause
	ButtonActionPlayPrevious
	ButtonActionPlayNext
)

var buttonActionNames = map[ButtonAction]string{
	ButtonActionNone:         "Do nothing",
	ButtonActionGotoClock:    "Go to clock",
	ButtonActionToggleSleep:  "Toggle sleep mode",
	ButtonActionPlayPause:    "MP3 play/pause",
	ButtonActionPlayPrevious: "MP3 previous track",
	ButtonActionPlayNext:     "MP3 next track",
}

// String returns the display label of the action.
func (a ButtonAction) String() string {
	if name, ok := buttonActionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ButtonActions returns every action in wire order.
func ButtonActions() []ButtonAction {
	return []ButtonAction{
		ButtonActionNone, ButtonActionGotoClock, ButtonActionToggleSleep,
		ButtonActionPlayPause, ButtonActionPlayPrevious, ButtonActionPlayNext,
	}
}

// IsButtonAction reports whether n is a defined action.
func IsButtonAction(n int) bool {
	_, ok := buttonActionNames[ButtonAction(n)]
	return ok
}

// Temperature units as sent by the device.
const (
	TemperatureCelsius    = 0
	TemperatureFahrenheit = 1
)

// Button pressed levels (digital pin level when the button is down).
const (
	PressedLow  = 0
	PressedHigh = 1
)

// ButtonCount is the number of button slots the firmware supports.
const ButtonCount = 3
