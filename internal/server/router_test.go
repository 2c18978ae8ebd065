package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/api"
	"mesh-map-sync/internal/config"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeTelemetry struct {
	track []any
	data  map[api.Category]any
}

func (f *fakeTelemetry) GetGpsTrack(ctx context.Context, nodeID any) []any {
	if f.track == nil {
		return []any{}
	}
	return f.track
}

func (f *fakeTelemetry) Get(ctx context.Context, category api.Category, nodeID any) any {
	return f.data[category]
}

type fakeCollector struct {
	records map[string]device.Record
}

func (f *fakeCollector) Collect(ctx context.Context, nodeID string) (device.Record, bool) {
	rec, ok := f.records[nodeID]
	return rec, ok
}

type fakeNodes struct {
	nodes []*models.Node
	err   error
}

func (f *fakeNodes) GetAll(ctx context.Context) ([]*models.Node, error) {
	return f.nodes, f.err
}

func (f *fakeNodes) FindByNodeID(ctx context.Context, nodeID string) (*models.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, n := range f.nodes {
		if n.NodeID == nodeID {
			return n, nil
		}
	}
	return nil, models.ErrNodeNotFound
}

func newTestRouter(nodes NodeLister) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "meshmap_test_total", Help: "test"}))

	return NewRouter(Dependencies{
		Name:    "mesh-map-sync",
		Version: "test",
		Telemetry: &fakeTelemetry{
			track: []any{map[string]any{"latitudeI": 557512.0}},
			data: map[api.Category]any{
				api.CategoryTraceroute: map[string]any{"hops": 3.0},
			},
		},
		Collector: &fakeCollector{records: map[string]device.Record{
			"!a1": {"hex_id": "!a1", "longName": "Base", "position_time": float64(testNow.Add(-10 * time.Second).Unix())},
		}},
		Evaluator: device.NewEvaluator(config.DeviceConfig{
			ActiveThreshold:         time.Hour,
			RecentlyActiveThreshold: 24 * time.Hour,
			Locale:                  "en",
		}, device.WithClock(func() time.Time { return testNow })),
		Nodes:    nodes,
		Gatherer: reg,
		Logger:   zerolog.Nop(),
	})
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRouter_Health(t *testing.T) {
	rr := do(t, newTestRouter(nil), "/healthz")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	rr := do(t, newTestRouter(nil), "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "meshmap_test_total") {
		t.Fatalf("unexpected metrics response %d", rr.Code)
	}
}

func TestRouter_NodeFacts(t *testing.T) {
	h := newTestRouter(nil)

	rr := do(t, h, "/api/nodes/!a1")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}

	var facts device.Facts
	if err := json.Unmarshal(rr.Body.Bytes(), &facts); err != nil {
		t.Fatal(err)
	}
	if facts.NodeID != "!a1" || facts.DisplayName != "Base" || !facts.IsOnline || facts.LastSeen != "10 sec ago" {
		t.Fatalf("unexpected facts %+v", facts)
	}

	if rr := do(t, h, "/api/nodes/!zz"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown node, got %d", rr.Code)
	}
}

func TestRouter_TrackAndCategories(t *testing.T) {
	h := newTestRouter(nil)

	rr := do(t, h, "/api/nodes/!a1/track")
	var track []any
	if err := json.Unmarshal(rr.Body.Bytes(), &track); err != nil || len(track) != 1 {
		t.Fatalf("unexpected track %s (%v)", rr.Body.String(), err)
	}

	rr = do(t, h, "/api/nodes/!a1/traceroute")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"hops":3`) {
		t.Fatalf("unexpected traceroute %d %s", rr.Code, rr.Body.String())
	}

	if rr := do(t, h, "/api/nodes/!a1/messages"); rr.Code != http.StatusNotFound {
		t.Fatalf("missing data should be 404, got %d", rr.Code)
	}
	if rr := do(t, h, "/api/nodes/!a1/weather"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown category should be 404, got %d", rr.Code)
	}
}

func TestRouter_ListNodes(t *testing.T) {
	lat, lng := 10.0, 20.0
	h := newTestRouter(&fakeNodes{nodes: []*models.Node{{NodeID: "!a1", Latitude: &lat, Longitude: &lng}}})

	rr := do(t, h, "/api/nodes")
	var dtos []models.NodeDto
	if err := json.Unmarshal(rr.Body.Bytes(), &dtos); err != nil || len(dtos) != 1 || dtos[0].NodeID != "!a1" {
		t.Fatalf("unexpected list %s (%v)", rr.Body.String(), err)
	}

	failing := newTestRouter(&fakeNodes{err: errors.New("db down")})
	if rr := do(t, failing, "/api/nodes"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestRouter_Snapshot(t *testing.T) {
	lat, lng := 10.0, 20.0
	h := newTestRouter(&fakeNodes{nodes: []*models.Node{{NodeID: "!a1", Latitude: &lat, Longitude: &lng}}})

	rr := do(t, h, "/api/nodes/!a1/snapshot")
	var dto models.NodeDto
	if err := json.Unmarshal(rr.Body.Bytes(), &dto); err != nil || dto.NodeID != "!a1" || len(dto.Coordinates) != 3 {
		t.Fatalf("unexpected snapshot %s (%v)", rr.Body.String(), err)
	}

	if rr := do(t, h, "/api/nodes/!zz/snapshot"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	failing := newTestRouter(&fakeNodes{err: errors.New("db down")})
	if rr := do(t, failing, "/api/nodes/!a1/snapshot"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	if rr := do(t, newTestRouter(nil), "/api/nodes/!a1/snapshot"); rr.Code != http.StatusNotFound {
		t.Fatalf("snapshot without storage should be an unknown category, got %d", rr.Code)
	}
}
