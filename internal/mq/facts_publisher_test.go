package mq

import (
	"errors"
	"testing"

	"mesh-map-sync/internal/device"
)

type fakePublisher struct {
	topic string
	data  interface{}
	err   error
}

func (f *fakePublisher) PublishJson(topic string, data interface{}) error {
	f.topic = topic
	f.data = data
	return f.err
}

func TestFactsPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewFactsPublisher(pub, NewTopicManager("meshmap"))

	if err := p.BroadcastFacts(device.Facts{NodeID: "!a1"}); err != nil {
		t.Fatal(err)
	}
	if pub.topic != "meshmap/facts/!a1" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	if facts, ok := pub.data.(device.Facts); !ok || facts.NodeID != "!a1" {
		t.Fatalf("unexpected payload %#v", pub.data)
	}

	pub.err = errors.New("not connected")
	if err := p.BroadcastFacts(device.Facts{NodeID: "!a1"}); !errors.Is(err, pub.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestFactsPublisher_RejectsUnsafeID(t *testing.T) {
	pub := &fakePublisher{}
	p := NewFactsPublisher(pub, NewTopicManager("meshmap"))

	if err := p.BroadcastFacts(device.Facts{NodeID: "a/#"}); err == nil {
		t.Fatal("expected error for id with topic separators")
	}
	if pub.topic != "" {
		t.Fatalf("nothing should be published, got %q", pub.topic)
	}
}
