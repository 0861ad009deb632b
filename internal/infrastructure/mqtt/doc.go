// Package mqtt provides MQTT client connectivity for PixelPanel.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic Tree
//
// Everything for one device lives under <prefix>/<device>/:
//
//	pixelpanel/pixelit/status        "online" / "offline" (retained, LWT)
//	pixelpanel/pixelit/connection    device link state (retained)
//	pixelpanel/pixelit/sensor        sensor readings
//	pixelpanel/pixelit/buttons       button events
//	pixelpanel/pixelit/sysinfo       system info (retained)
//	pixelpanel/pixelit/log           device log lines
//	pixelpanel/pixelit/config        confirmed config (retained)
//	pixelpanel/pixelit/config/set    inbound config changes
//	pixelpanel/pixelit/config/result outcome of the last config/set
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Device.Name)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishRetained(topics.Config(), payload)
package mqtt
