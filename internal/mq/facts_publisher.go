package mq

import (
	"fmt"
	"mesh-map-sync/internal/device"
)

type JsonPublisher interface {
	PublishJson(topic string, data interface{}) error
}

// FactsPublisher publishes canonical facts as retained messages under
// <base>/facts/<nodeId>.
type FactsPublisher struct {
	publisher    JsonPublisher
	topicManager *TopicManager
}

func NewFactsPublisher(publisher JsonPublisher, topicManager *TopicManager) *FactsPublisher {
	return &FactsPublisher{
		publisher:    publisher,
		topicManager: topicManager,
	}
}

func (p *FactsPublisher) BroadcastFacts(facts device.Facts) error {
	topic, err := p.topicManager.GetFactsTopic(facts.NodeID)
	if err != nil {
		return fmt.Errorf("failed to publish facts: %w", err)
	}
	if err := p.publisher.PublishJson(topic, facts); err != nil {
		return fmt.Errorf("failed to publish facts for node %s: %w", facts.NodeID, err)
	}
	return nil
}
