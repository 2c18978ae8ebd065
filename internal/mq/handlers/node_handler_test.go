package handlers

import (
	"testing"

	"github.com/rs/zerolog"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/mq"
)

type ingestCall struct {
	hint string
	rec  device.Record
}

type fakeIngester struct {
	calls []ingestCall
}

func (f *fakeIngester) Ingest(hint string, rec device.Record) {
	f.calls = append(f.calls, ingestCall{hint: hint, rec: rec})
}

func newTestHandler() (*NodeHandler, *fakeIngester) {
	ing := &fakeIngester{}
	return NewNodeHandler(mq.NewTopicManager("meshmap"), ing, zerolog.Nop()), ing
}

func TestNodeHandler_BareRecord(t *testing.T) {
	h, ing := newTestHandler()

	h.handle("meshmap/nodes/!a1", []byte(`{"hex_id": "!a1", "latitude": 55.7}`))

	if len(ing.calls) != 1 {
		t.Fatalf("expected one ingest, got %d", len(ing.calls))
	}
	if ing.calls[0].hint != "!a1" || ing.calls[0].rec["latitude"] != 55.7 {
		t.Fatalf("unexpected call %+v", ing.calls[0])
	}
}

func TestNodeHandler_Envelope(t *testing.T) {
	h, ing := newTestHandler()

	h.handle("meshmap/nodes/42", []byte(`{"data": {"device_id": "42"}, "source": "gateway"}`))
	if len(ing.calls) != 1 || ing.calls[0].rec["device_id"] != "42" {
		t.Fatalf("envelope not unwrapped: %+v", ing.calls)
	}

	h.handle("meshmap/nodes/42", []byte(`{"data": {"device_id": "42"}, "source": "SYNC"}`))
	if len(ing.calls) != 1 {
		t.Fatalf("own messages must be ignored, got %d calls", len(ing.calls))
	}
}

func TestNodeHandler_Rejects(t *testing.T) {
	h, ing := newTestHandler()

	h.handle("meshmap/nodes/!a1", nil)
	h.handle("meshmap/nodes/!a1", []byte(`[1,2,3]`))
	h.handle("meshmap/nodes/!a1", []byte(`not json`))
	h.handle("other/nodes/!a1", []byte(`{}`))

	if len(ing.calls) != 0 {
		t.Fatalf("expected no ingest, got %+v", ing.calls)
	}
}
