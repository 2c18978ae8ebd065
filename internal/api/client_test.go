package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/config"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(p string) {
	r.mu.Lock()
	r.paths = append(r.paths, p)
	r.mu.Unlock()
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func apiConfig(base string) config.APIConfig {
	return config.APIConfig{
		GpsTrackEndpoint:      base + "/position",
		DeviceMetricsEndpoint: base + "/device-metrics",
		NodeInfoEndpoint:      base + "/nodeinfo",
		PositionEndpoint:      base + "/position",
		TelemetryEndpoint:     base + "/telemetry",
		TextMessageEndpoint:   base + "/text-message",
		MapReportEndpoint:     base + "/map-report",
		TracerouteEndpoint:    base + "/traceroute",
		RequestTimeout:        2 * time.Second,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *prometheus.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	return NewClient(apiConfig(srv.URL), zerolog.Nop(), WithRegisterer(reg)), reg
}

func allCategories(c *Client) map[Category]func(context.Context, any) any {
	return map[Category]func(context.Context, any) any{
		CategoryDeviceMetrics: c.GetDeviceMetrics,
		CategoryNodeInfo:      c.GetNodeInfo,
		CategoryPosition:      c.GetPositionInfo,
		CategoryTelemetry:     c.GetTelemetryInfo,
		CategoryTextMessages:  c.GetTextMessages,
		CategoryMapReport:     c.GetMapReportInfo,
		CategoryTraceroute:    c.GetTracerouteInfo,
	}
}

func TestClient_ServerErrorYieldsDefaults(t *testing.T) {
	c, reg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	ctx := context.Background()

	track := c.GetGpsTrack(ctx, "!a1")
	if track == nil || len(track) != 0 {
		t.Fatalf("expected empty track, got %#v", track)
	}

	for category, get := range allCategories(c) {
		if got := get(ctx, "!a1"); got != nil {
			t.Fatalf("%s: expected nil, got %#v", category, got)
		}
	}

	failed := testutil.ToFloat64(c.requests.WithLabelValues(string(CategoryNodeInfo), outcomeFailed))
	if failed != 1 {
		t.Fatalf("expected one failed node_info request, got %v", failed)
	}
	if n, err := testutil.GatherAndCount(reg, "meshmap_api_requests_total"); err != nil || n != 8 {
		t.Fatalf("expected 8 series, got %d (%v)", n, err)
	}
}

func TestClient_PassesPayloadThrough(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/position"):
			_, _ = w.Write([]byte(`[{"latitudeI": 557512}, {"latitudeI": 557513}]`))
		default:
			_, _ = w.Write([]byte(`{"device_id": "!a1", "user": {"serverTime": 1700000000}}`))
		}
	})
	ctx := context.Background()

	track := c.GetGpsTrack(ctx, "!a1")
	if len(track) != 2 {
		t.Fatalf("expected two track points, got %#v", track)
	}
	if rec.last() != "/position:!a1" {
		t.Fatalf("unexpected path %q", rec.last())
	}

	info, ok := c.GetNodeInfo(ctx, "!a1").(map[string]any)
	if !ok || info["device_id"] != "!a1" {
		t.Fatalf("unexpected node info %#v", info)
	}
	if rec.last() != "/nodeinfo:!a1" {
		t.Fatalf("unexpected path %q", rec.last())
	}
}

func TestClient_NumericNodeID(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	if got := c.GetTelemetryInfo(context.Background(), 305419896); got == nil {
		t.Fatal("expected payload")
	}
	if rec.last() != "/telemetry:305419896" {
		t.Fatalf("unexpected path %q", rec.last())
	}
}

func TestClient_BadJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	ctx := context.Background()

	if got := c.GetMapReportInfo(ctx, "!a1"); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
	if got := c.GetGpsTrack(ctx, "!a1"); len(got) != 0 {
		t.Fatalf("expected empty track, got %#v", got)
	}
}

func TestClient_TrailingDataRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/position") {
			_, _ = w.Write([]byte("[1] junk"))
			return
		}
		_, _ = w.Write([]byte(`{"a": 1} {"b": 2}`))
	})
	ctx := context.Background()

	if got := c.GetGpsTrack(ctx, "!a1"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty track, got %#v", got)
	}
	if got := c.GetNodeInfo(ctx, "!a1"); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
	if n := testutil.ToFloat64(c.requests.WithLabelValues(string(CategoryGpsTrack), outcomeFailed)); n != 1 {
		t.Fatalf("expected one failed track request, got %v", n)
	}
}

func TestClient_TrailingWhitespaceAccepted(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{\"hops\": 3}\n"))
	})

	got, ok := c.GetTracerouteInfo(context.Background(), "!a1").(map[string]any)
	if !ok || got["hops"] != 3.0 {
		t.Fatalf("unexpected payload %#v", got)
	}
}

func TestClient_TrackMustBeArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"points": []}`))
	})

	if got := c.GetGpsTrack(context.Background(), "!a1"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty track, got %#v", got)
	}
}

func TestClient_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(apiConfig(base), zerolog.Nop())
	if got := c.GetTracerouteInfo(context.Background(), "!a1"); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
	if got := c.GetGpsTrack(context.Background(), "!a1"); len(got) != 0 {
		t.Fatalf("expected empty track, got %#v", got)
	}
}

func TestClient_Get(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1, 2]`))
	})
	ctx := context.Background()

	if got, ok := c.Get(ctx, CategoryGpsTrack, "!a1").([]any); !ok || len(got) != 2 {
		t.Fatalf("unexpected track %#v", got)
	}
	if got := c.Get(ctx, Category("weather"), "!a1"); got != nil {
		t.Fatalf("unknown category should be nil, got %#v", got)
	}
	if got := c.Get(ctx, CategoryNodeInfo, nil); got != nil {
		t.Fatalf("nil id should be nil, got %#v", got)
	}
}
