package handlers

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/mq"
)

// NodeIngester receives decoded records. hint is the node id taken from the
// topic, used when the record carries no identity of its own.
type NodeIngester interface {
	Ingest(hint string, rec device.Record)
}

type NodeHandler struct {
	ingester     NodeIngester
	topicManager *mq.TopicManager
	logger       zerolog.Logger
}

func NewNodeHandler(topicManager *mq.TopicManager, ingester NodeIngester, logger zerolog.Logger) *NodeHandler {
	return &NodeHandler{
		ingester:     ingester,
		topicManager: topicManager,
		logger:       logger,
	}
}

func (h *NodeHandler) HandleMessage(client mqtt.Client, msg mqtt.Message) {
	h.handle(msg.Topic(), msg.Payload())
}

func (h *NodeHandler) handle(topic string, payload []byte) {
	if len(payload) == 0 {
		return
	}

	nodeID, err := h.topicManager.ExtractNodeID(topic)
	if err != nil {
		h.logger.Error().Err(err).
			Str("topic", topic).
			Msg("Invalid node topic")
		return
	}

	h.logger.Debug().
		Str("topic", topic).
		Int("payload_size", len(payload)).
		Msg("Received node update")

	rec, source, err := mq.DecodeNodeMessage(payload)
	if err != nil {
		h.logger.Error().Err(err).
			Str("topic", topic).
			Str("payload", string(payload)).
			Msg("Could not parse node data")
		return
	}

	if source == mq.SourceSync {
		h.logger.Debug().
			Str("source", source).
			Msg("Ignoring own node message")
		return
	}

	h.ingester.Ingest(nodeID, rec)
}
