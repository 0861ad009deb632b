package connection

import (
	"encoding/json"
	"fmt"
)

// Topic is a top-level key of a device frame.
type Topic string

// Inbound topics pushed by the firmware.
const (
	TopicLog     Topic = "log"
	TopicSensor  Topic = "sensor"
	TopicButtons Topic = "buttons"
	TopicSysInfo Topic = "sysinfo"
	TopicConfig  Topic = "config"
)

// Outbound commands understood by the firmware.
const (
	CommandSetConfig = "setConfig"
)

// applyOrder fixes the order in which topics of one frame reach the sink.
var applyOrder = []Topic{TopicConfig, TopicSysInfo, TopicSensor, TopicButtons, TopicLog}

func isKnownTopic(t Topic) bool {
	for _, k := range applyOrder {
		if k == t {
			return true
		}
	}
	return false
}

// Frame is a fully decoded inbound frame.
type Frame struct {
	Payloads map[Topic]map[string]any

	// Unknown lists topics present in the frame that were skipped.
	Unknown []string
}

// DecodeFrame parses raw into a Frame. Every known topic must carry a JSON
// object; otherwise the whole frame is rejected with ErrMalformedFrame.
func DecodeFrame(raw []byte) (Frame, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if top == nil {
		return Frame{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	f := Frame{Payloads: make(map[Topic]map[string]any, len(top))}
	for key, body := range top {
		t := Topic(key)
		if !isKnownTopic(t) {
			f.Unknown = append(f.Unknown, key)
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return Frame{}, fmt.Errorf("%w: topic %q: %v", ErrMalformedFrame, key, err)
		}
		if payload == nil {
			return Frame{}, fmt.Errorf("%w: topic %q: payload is null", ErrMalformedFrame, key)
		}
		f.Payloads[t] = payload
	}
	return f, nil
}

// EncodeFrame serialises {topic: payload}.
func EncodeFrame(topic string, payload any) ([]byte, error) {
	if topic == "" {
		return nil, fmt.Errorf("encoding frame: empty topic")
	}
	data, err := json.Marshal(map[string]any{topic: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding frame %q: %w", topic, err)
	}
	return data, nil
}
