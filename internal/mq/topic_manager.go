package mq

import (
	"fmt"
	"regexp"
	"strings"
)

type TopicManager struct {
	BaseTopic string
	nodeRegex *regexp.Regexp
}

func NewTopicManager(baseTopic string) *TopicManager {
	m := &TopicManager{BaseTopic: strings.TrimSuffix(baseTopic, "/")}
	m.nodeRegex = m.buildTopicRegex(NodeTopicTemplate)
	return m
}

const (
	NodeTopicTemplate  = "%s/nodes/+"
	FactsTopicTemplate = "%s/facts/+"
)

// GetNodeTopic is the subscription filter for raw node records.
func (m *TopicManager) GetNodeTopic() string {
	return fmt.Sprintf(NodeTopicTemplate, m.BaseTopic)
}

// GetFactsTopic is where canonical facts for nodeID are published. Ids that
// cannot form a single topic level are rejected.
func (m *TopicManager) GetFactsTopic(nodeID string) (string, error) {
	if nodeID == "" || strings.ContainsAny(nodeID, "/+#\x00") {
		return "", fmt.Errorf("node id %q is not a valid topic level", nodeID)
	}
	return strings.TrimSuffix(fmt.Sprintf(FactsTopicTemplate, m.BaseTopic), "+") + nodeID, nil
}

func (m *TopicManager) buildTopicRegex(template string) *regexp.Regexp {
	pattern := regexp.QuoteMeta(fmt.Sprintf(template, m.BaseTopic))
	pattern = strings.ReplaceAll(pattern, `\+`, "([^/]+)")
	pattern = "^" + pattern + "$"

	return regexp.MustCompile(pattern)
}

func (m *TopicManager) ExtractNodeID(topic string) (string, error) {
	matches := m.nodeRegex.FindStringSubmatch(topic)

	if len(matches) < 2 {
		return "", fmt.Errorf("could not extract node id from topic: %s", topic)
	}

	return matches[1], nil
}
