// Package server exposes node facts, raw telemetry pass-through, metrics and
// the websocket feed over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/api"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/models"
	"net/http"
	"time"
)

type Telemetry interface {
	GetGpsTrack(ctx context.Context, nodeID any) []any
	Get(ctx context.Context, category api.Category, nodeID any) any
}

type Collector interface {
	Collect(ctx context.Context, nodeID string) (device.Record, bool)
}

type NodeLister interface {
	GetAll(ctx context.Context) ([]*models.Node, error)
	FindByNodeID(ctx context.Context, nodeID string) (*models.Node, error)
}

// Dependencies wires the router. Nodes and Hub may be nil; their routes are
// then not mounted.
type Dependencies struct {
	Name      string
	Version   string
	Telemetry Telemetry
	Collector Collector
	Evaluator *device.Evaluator
	Nodes     NodeLister
	Hub       http.HandlerFunc
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger
}

var categoryRoutes = map[string]api.Category{
	"nodeinfo":   api.CategoryNodeInfo,
	"position":   api.CategoryPosition,
	"metrics":    api.CategoryDeviceMetrics,
	"telemetry":  api.CategoryTelemetry,
	"messages":   api.CategoryTextMessages,
	"map-report": api.CategoryMapReport,
	"traceroute": api.CategoryTraceroute,
}

type handler struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.Hub != nil {
		r.Get("/ws", deps.Hub)
	}

	r.Route("/api/nodes", func(r chi.Router) {
		if deps.Nodes != nil {
			r.Get("/", h.listNodes)
			r.Get("/{nodeId}/snapshot", h.snapshot)
		}
		r.Get("/{nodeId}", h.nodeFacts)
		r.Get("/{nodeId}/track", h.track)
		r.Get("/{nodeId}/{category}", h.category)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.deps.Name,
		"version": h.deps.Version,
	})
}

func (h *handler) listNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.deps.Nodes.GetAll(r.Context())
	if err != nil {
		h.deps.Logger.Error().Err(err).Msg("Failed to list nodes")
		writeError(w, http.StatusInternalServerError, "failed to list nodes")
		return
	}

	dtos := make([]models.NodeDto, 0, len(nodes))
	for _, n := range nodes {
		dtos = append(dtos, n.ToDto())
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	node, err := h.deps.Nodes.FindByNodeID(r.Context(), chi.URLParam(r, "nodeId"))
	if errors.Is(err, models.ErrNodeNotFound) {
		writeError(w, http.StatusNotFound, "node not stored")
		return
	}
	if err != nil {
		h.deps.Logger.Error().Err(err).Msg("Failed to load node snapshot")
		writeError(w, http.StatusInternalServerError, "failed to load node")
		return
	}
	writeJSON(w, http.StatusOK, node.ToDto())
}

func (h *handler) nodeFacts(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")

	rec, ok := h.deps.Collector.Collect(r.Context(), nodeID)
	if !ok {
		writeError(w, http.StatusNotFound, "no data available for node")
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Evaluator.Evaluate(rec))
}

func (h *handler) track(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeId")
	writeJSON(w, http.StatusOK, h.deps.Telemetry.GetGpsTrack(r.Context(), nodeID))
}

func (h *handler) category(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryRoutes[chi.URLParam(r, "category")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}

	data := h.deps.Telemetry.Get(r.Context(), category, chi.URLParam(r, "nodeId"))
	if data == nil {
		writeError(w, http.StatusNotFound, "no data available for node")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("Handled request")
		})
	}
}
