package listeners

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const ChangeChannel = "mesh_map_changes"

type OperationType string

const (
	InsertOperation OperationType = "INSERT"
	UpdateOperation OperationType = "UPDATE"
	DeleteOperation OperationType = "DELETE"
)

type TableChangeEvent struct {
	Operation OperationType          `json:"operation"`
	Table     string                 `json:"table"`
	OldData   map[string]interface{} `json:"old_data,omitempty"`
	NewData   map[string]interface{} `json:"new_data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// DecodeRow re-encodes the row image the event carries for its operation
// (old row for deletes, new row otherwise) into dst.
func (e *TableChangeEvent) DecodeRow(dst interface{}) error {
	row := e.NewData
	if e.Operation == DeleteOperation {
		row = e.OldData
	}
	if row == nil {
		return fmt.Errorf("%s event on %s carries no row", e.Operation, e.Table)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}
	return nil
}

type TableListener interface {
	GetTableName() string
	HandleChange(ctx context.Context, event *TableChangeEvent) error
}

func parseEvent(payload string) (*TableChangeEvent, error) {
	var event TableChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	if event.Table == "" {
		return nil, fmt.Errorf("notification has no table")
	}
	return &event, nil
}
