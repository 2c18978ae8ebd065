package mq

import (
	"encoding/json"
	"fmt"
	"mesh-map-sync/internal/device"
)

// SourceSync marks messages published by this service.
const SourceSync = "SYNC"

type Message struct {
	Data   interface{} `json:"data"`
	Source string      `json:"source"`
}

// DecodeNodeMessage accepts either a bare device record or a Message
// envelope whose data is the record. The returned source is empty for bare
// records.
func DecodeNodeMessage(payload []byte) (device.Record, string, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, "", fmt.Errorf("payload is not a JSON object: %w", err)
	}

	data, hasData := raw["data"].(map[string]interface{})
	source, hasSource := raw["source"].(string)
	if hasData && hasSource && len(raw) == 2 {
		return device.Record(data), source, nil
	}

	return device.Record(raw), "", nil
}
