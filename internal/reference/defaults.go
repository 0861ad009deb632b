package reference

// DefaultConfig returns the firmware factory configuration.
//
// Numbers are float64 so the map compares equal to a decoded device echo.
func DefaultConfig() map[string]any {
	cfg := map[string]any{
		// Matrix
		"matrixBrightness":          float64(127),
		"matrixBrightnessAutomatic": true,
		"mbaDimMin":                 float64(20),
		"mbaDimMax":                 float64(100),
		"mbaLuxMin":                 float64(0),
		"mbaLuxMax":                 float64(400),
		"matrixType":                float64(1),
		"matrixTempCorrection":      DefaultColorCorrection,

		// General
		"note":                   "",
		"hostname":               "PixelIt",
		"temperatureUnit":        float64(TemperatureCelsius),
		"bootScreenAktiv":        true,
		"scrollTextDefaultDelay": float64(100),
		"initialVolume":          float64(10),

		// MQTT
		"mqttAktiv":       false,
		"mqttUser":        "",
		"mqttPassword":    "",
		"mqttServer":      "",
		"mqttMasterTopic": "Haus/PixelIt/",
		"mqttPort":        float64(1883),

		// Clock
		"ntpServer":                  "de.pool.ntp.org",
		"clockTimeZone":              float64(1),
		"clockColor":                 "#FFFFFF",
		"clockSwitchAktiv":           true,
		"clockSwitchSec":             float64(7),
		"clock24Hours":               true,
		"clockDayLightSaving":        true,
		"clockWithSeconds":           false,
		"clockAutoFallbackActive":    false,
		"clockAutoFallbackTime":      float64(30),
		"clockAutoFallbackAnimation": float64(1),
		"clockDateDayMonth":          true,
		"clockDayOfWeekFirstMonday":  true,

		// Sensor offsets
		"luxOffset":         float64(0),
		"temperatureOffset": float64(0),
		"humidityOffset":    float64(0),
		"pressureOffset":    float64(0),
		"gasOffset":         float64(0),

		// Pins
		"dfpRXpin":   string(PinD7),
		"dfpTXpin":   string(PinD8),
		"onewirePin": string(PinD1),
		"SCLPin":     string(PinD1),
		"SDAPin":     string(PinD3),

		// Light sensor
		"ldrDevice":    string(LightSensorGL5516),
		"ldrPulldown":  float64(10000),
		"ldrSmoothing": float64(0),
	}

	buttonPins := []Pin{PinD0, PinD4, PinD5}
	buttonActions := []ButtonAction{ButtonActionToggleSleep, ButtonActionGotoClock, ButtonActionNone}
	for i := range ButtonCount {
		cfg[ButtonKey(i, "Pin")] = string(buttonPins[i])
		cfg[ButtonKey(i, "PressedLevel")] = float64(PressedLow)
		cfg[ButtonKey(i, "Enabled")] = false
		cfg[ButtonKey(i, "Action")] = float64(buttonActions[i])
	}

	return cfg
}
