package mqtt

import "strings"

// Availability payloads published on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics builds the topic tree of one device: <prefix>/<device>/<leaf>.
//
//	topics := mqtt.NewTopics("pixelpanel", "kitchen")
//	topics.Sensor() // "pixelpanel/kitchen/sensor"
type Topics struct {
	prefix string
	device string
}

// NewTopics trims surrounding slashes from prefix and device.
func NewTopics(prefix, device string) Topics {
	return Topics{
		prefix: strings.Trim(prefix, "/"),
		device: strings.Trim(device, "/"),
	}
}

func (t Topics) leaf(name string) string {
	if t.prefix == "" {
		return t.device + "/" + name
	}
	return t.prefix + "/" + t.device + "/" + name
}

// Status carries the service availability; it is also the LWT topic.
func (t Topics) Status() string { return t.leaf("status") }

// Connection carries the device link state.
func (t Topics) Connection() string { return t.leaf("connection") }

// Sensor carries sensor readings.
func (t Topics) Sensor() string { return t.leaf("sensor") }

// Buttons carries button events.
func (t Topics) Buttons() string { return t.leaf("buttons") }

// SysInfo carries the latest system info.
func (t Topics) SysInfo() string { return t.leaf("sysinfo") }

// Log carries device log lines.
func (t Topics) Log() string { return t.leaf("log") }

// Config carries the confirmed config.
func (t Topics) Config() string { return t.leaf("config") }

// ConfigSet receives config changes to apply.
func (t Topics) ConfigSet() string { return t.leaf("config/set") }

// ConfigResult reports the outcome of the last ConfigSet message.
func (t Topics) ConfigResult() string { return t.leaf("config/result") }

// All matches every topic of the device.
func (t Topics) All() string { return t.leaf("#") }
