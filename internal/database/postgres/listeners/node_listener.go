package listeners

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/models"
)

type NodeChangeSink interface {
	BroadcastNode(node models.NodeDto) error
	BroadcastNodeRemoved(nodeID string) error
}

// NodeTableListener forwards node snapshot changes made outside the ingest
// path, such as the offline sweep, to live clients.
type NodeTableListener struct {
	tableName string
	sink      NodeChangeSink
	logger    zerolog.Logger
}

func NewNodeTableListener(tableName string, sink NodeChangeSink, logger zerolog.Logger) *NodeTableListener {
	return &NodeTableListener{
		tableName: tableName,
		sink:      sink,
		logger:    logger,
	}
}

func (l *NodeTableListener) GetTableName() string {
	return l.tableName
}

func (l *NodeTableListener) HandleChange(ctx context.Context, event *TableChangeEvent) error {
	l.logger.Debug().
		Str("operation", string(event.Operation)).
		Time("timestamp", event.Timestamp).
		Msg("Node table change detected")

	switch event.Operation {
	case InsertOperation:
		return l.handleUpsert(event)
	case UpdateOperation:
		if !statusChanged(event) {
			return nil
		}
		return l.handleUpsert(event)
	case DeleteOperation:
		return l.handleDelete(event)
	default:
		return fmt.Errorf("unknown operation: %s", event.Operation)
	}
}

func (l *NodeTableListener) handleUpsert(event *TableChangeEvent) error {
	var node models.Node
	if err := event.DecodeRow(&node); err != nil {
		return err
	}

	if err := l.sink.BroadcastNode(node.ToDto()); err != nil {
		return fmt.Errorf("failed to broadcast node %s: %w", node.NodeID, err)
	}
	return nil
}

func (l *NodeTableListener) handleDelete(event *TableChangeEvent) error {
	var node models.Node
	if err := event.DecodeRow(&node); err != nil {
		return err
	}

	l.logger.Info().
		Str("node_id", node.NodeID).
		Msg("Node deleted")

	if err := l.sink.BroadcastNodeRemoved(node.NodeID); err != nil {
		return fmt.Errorf("failed to broadcast removal of node %s: %w", node.NodeID, err)
	}
	return nil
}

// statusChanged reports whether an update flipped one of the liveness
// columns. Ingest updates already reach clients as facts.
func statusChanged(event *TableChangeEvent) bool {
	for _, column := range []string{"is_online", "is_recently_active"} {
		if event.OldData[column] != event.NewData[column] {
			return true
		}
	}
	return false
}
