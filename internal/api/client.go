// Package api fetches per-node telemetry from the upstream mesh service.
// Failures never reach the caller: they are logged and replaced by the
// category default ([] for GPS tracks, nil otherwise).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"io"
	"mesh-map-sync/internal/config"
	"net/http"
)

type Category string

const (
	CategoryGpsTrack      Category = "gps_track"
	CategoryDeviceMetrics Category = "device_metrics"
	CategoryNodeInfo      Category = "node_info"
	CategoryPosition      Category = "position"
	CategoryTelemetry     Category = "telemetry"
	CategoryTextMessages  Category = "text_messages"
	CategoryMapReport     Category = "map_report"
	CategoryTraceroute    Category = "traceroute"
)

var failureMessages = map[Category]string{
	CategoryGpsTrack:      "Failed to fetch GPS track",
	CategoryDeviceMetrics: "Failed to fetch device metrics",
	CategoryNodeInfo:      "Failed to fetch node info",
	CategoryPosition:      "Failed to fetch position info",
	CategoryTelemetry:     "Failed to fetch telemetry",
	CategoryTextMessages:  "Failed to fetch text messages",
	CategoryMapReport:     "Failed to fetch map report",
	CategoryTraceroute:    "Failed to fetch traceroute",
}

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

type Client struct {
	httpClient *http.Client
	endpoints  map[Category]string
	requests   *prometheus.CounterVec
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRegisterer registers the request counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		reg.MustRegister(c.requests)
	}
}

func NewClient(cfg config.APIConfig, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		endpoints: map[Category]string{
			CategoryGpsTrack:      cfg.GpsTrackEndpoint,
			CategoryDeviceMetrics: cfg.DeviceMetricsEndpoint,
			CategoryNodeInfo:      cfg.NodeInfoEndpoint,
			CategoryPosition:      cfg.PositionEndpoint,
			CategoryTelemetry:     cfg.TelemetryEndpoint,
			CategoryTextMessages:  cfg.TextMessageEndpoint,
			CategoryMapReport:     cfg.MapReportEndpoint,
			CategoryTraceroute:    cfg.TracerouteEndpoint,
		},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshmap",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Upstream telemetry requests by category and outcome.",
		}, []string{"category", "outcome"}),
		logger: logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetGpsTrack returns the node's track points, or an empty slice.
func (c *Client) GetGpsTrack(ctx context.Context, nodeID any) []any {
	track, ok := fetch[[]any](ctx, c, CategoryGpsTrack, nodeID)
	if !ok || track == nil {
		return []any{}
	}
	return track
}

func (c *Client) GetDeviceMetrics(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryDeviceMetrics, nodeID)
}

func (c *Client) GetNodeInfo(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryNodeInfo, nodeID)
}

func (c *Client) GetPositionInfo(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryPosition, nodeID)
}

func (c *Client) GetTelemetryInfo(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryTelemetry, nodeID)
}

func (c *Client) GetTextMessages(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryTextMessages, nodeID)
}

func (c *Client) GetMapReportInfo(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryMapReport, nodeID)
}

func (c *Client) GetTracerouteInfo(ctx context.Context, nodeID any) any {
	return c.fetchAny(ctx, CategoryTraceroute, nodeID)
}

// Get dispatches by category. Unknown categories yield nil.
func (c *Client) Get(ctx context.Context, category Category, nodeID any) any {
	if category == CategoryGpsTrack {
		return c.GetGpsTrack(ctx, nodeID)
	}
	if _, ok := c.endpoints[category]; !ok {
		return nil
	}
	return c.fetchAny(ctx, category, nodeID)
}

func (c *Client) fetchAny(ctx context.Context, category Category, nodeID any) any {
	data, _ := fetch[any](ctx, c, category, nodeID)
	return data
}

// fetch is the single resilient read used by every category. The bool is
// false when the request failed and the zero value was returned instead.
func fetch[T any](ctx context.Context, c *Client, category Category, nodeID any) (T, bool) {
	var zero T

	requestID := uuid.NewString()
	log := c.logger.With().
		Str("category", string(category)).
		Interface("node_id", nodeID).
		Str("request_id", requestID).
		Logger()

	data, err := get[T](ctx, c, category, nodeID)
	if err != nil {
		c.requests.WithLabelValues(string(category), outcomeFailed).Inc()
		log.Error().Err(err).Msg(failureMessages[category])
		return zero, false
	}

	c.requests.WithLabelValues(string(category), outcomeOK).Inc()
	log.Debug().Msg("Fetched telemetry")
	return data, true
}

func get[T any](ctx context.Context, c *Client, category Category, nodeID any) (T, error) {
	var data T

	url, err := c.url(category, nodeID)
	if err != nil {
		return data, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return data, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return data, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return data, fmt.Errorf("HTTP error, status: %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&data); err != nil {
		return data, fmt.Errorf("failed to decode response: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		var zero T
		return zero, fmt.Errorf("failed to decode response: unexpected data after JSON value")
	}

	return data, nil
}

// url renders "<endpoint>:<nodeID>" with the id path-escaped.
func (c *Client) url(category Category, nodeID any) (string, error) {
	endpoint, ok := c.endpoints[category]
	if !ok || endpoint == "" {
		return "", fmt.Errorf("no endpoint configured for %s", category)
	}
	if nodeID == nil {
		return "", fmt.Errorf("node id is required")
	}

	segment, err := runtime.StyleParamWithLocation("simple", false, "nodeId", runtime.ParamLocationPath, nodeID)
	if err != nil {
		return "", fmt.Errorf("invalid node id %v: %w", nodeID, err)
	}

	return endpoint + ":" + segment, nil
}
