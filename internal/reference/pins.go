package reference

import "fmt"

// PinRole is a config key that assigns a physical pin to a peripheral.
type PinRole struct {
	// Key is the config key holding the pin, e.g. "SDAPin".
	Key string `json:"key"`

	// Label names the peripheral line for messages.
	Label string `json:"label"`

	// EnabledKey, when set, is a boolean config key. The role only claims
	// its pin while that key is true.
	EnabledKey string `json:"enabled_key,omitempty"`
}

// PinRoles returns every pin assignment the firmware reads.
func PinRoles() []PinRole {
	roles := []PinRole{
		{Key: "dfpRXpin", Label: "DFPlayer RX"},
		{Key: "dfpTXpin", Label: "DFPlayer TX"},
		{Key: "onewirePin", Label: "1-Wire sensor"},
		{Key: "SCLPin", Label: "I2C SCL"},
		{Key: "SDAPin", Label: "I2C SDA"},
	}
	for i := range ButtonCount {
		roles = append(roles, PinRole{
			Key:        ButtonKey(i, "Pin"),
			Label:      fmt.Sprintf("Button %d", i),
			EnabledKey: ButtonKey(i, "Enabled"),
		})
	}
	return roles
}

// sharedPins lists role pairs that may use the same pin. The firmware drives
// either a 1-Wire sensor or an I2C sensor, never both, so the 1-Wire line is
// allowed to overlap the I2C lines.
var sharedPins = map[[2]string]struct{}{
	{"onewirePin", "SCLPin"}: {},
	{"onewirePin", "SDAPin"}: {},
}

// MayShare reports whether two pin roles are allowed to use the same pin.
func MayShare(a, b string) bool {
	if _, ok := sharedPins[[2]string{a, b}]; ok {
		return true
	}
	_, ok := sharedPins[[2]string{b, a}]
	return ok
}

// ButtonKey builds a per-button config key, e.g. ButtonKey(1, "Action") is "btn1Action".
func ButtonKey(slot int, suffix string) string {
	return fmt.Sprintf("btn%d%s", slot, suffix)
}
