// Package connection maintains the WebSocket session with a PixelIt device.
//
// The Manager dials the device, decodes every inbound frame and writes the
// payloads into a state sink (normally *store.Store). It serialises outbound
// frames, tracks config submissions until the device echoes its config, and
// reconnects with exponential backoff when the link drops unexpectedly.
//
// Connection status is reported only through the sink:
//
//	{IsConnected: true,  ReconnectError: false}  session open
//	{IsConnected: false, ReconnectError: true}   lost, reconnecting or gave up
//	{IsConnected: false, ReconnectError: false}  deliberately disconnected
//
// Frames are JSON objects keyed by topic:
//
//	{"sensor": {"lux": 12.5}, "buttons": {"btn0": "pressed"}}
//
// A frame that fails to decode is dropped whole; no partial update is applied.
//
// Config acknowledgement: the firmware protocol carries no request ID and
// the device pushes its full config on its own (after boot, or when edited
// through the firmware web UI). Any inbound config frame therefore settles
// the oldest pending SubmitConfig, even one the device sent before reading
// the submission. Callers must read the confirmed snapshot from the sink
// rather than assume their own values were applied.
package connection
