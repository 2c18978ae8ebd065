package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/models"
	"sync"
	"time"
)

type NodeStore interface {
	Upsert(ctx context.Context, node *models.Node) error
}

// OfflineMarker is implemented by stores that can flag stale nodes in bulk.
type OfflineMarker interface {
	MarkOffline(ctx context.Context, cutoff time.Time) (int64, error)
	MarkInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

type FactsWriter interface {
	WriteFacts(ctx context.Context, facts device.Facts, at time.Time) error
}

type FactsBroadcaster interface {
	BroadcastFacts(facts device.Facts) error
}

// NodeService turns raw records into canonical facts and fans them out to
// the configured sinks. Every sink is optional.
type NodeService struct {
	evaluator    *device.Evaluator
	store        NodeStore
	writer       FactsWriter
	broadcasters []FactsBroadcaster
	debounce     time.Duration
	logger       zerolog.Logger

	mu         sync.Mutex
	buffers    map[string]device.Record
	debouncers map[string]*device.Debouncer[string]

	ctx        context.Context
	cancelFunc context.CancelFunc
}

type NodeServiceOption func(*NodeService)

func WithNodeStore(store NodeStore) NodeServiceOption {
	return func(s *NodeService) {
		s.store = store
	}
}

func WithFactsWriter(writer FactsWriter) NodeServiceOption {
	return func(s *NodeService) {
		s.writer = writer
	}
}

func WithBroadcaster(b FactsBroadcaster) NodeServiceOption {
	return func(s *NodeService) {
		s.broadcasters = append(s.broadcasters, b)
	}
}

// WithIngestDebounce sets how long Ingest waits for a burst to settle.
// Zero processes every record immediately.
func WithIngestDebounce(wait time.Duration) NodeServiceOption {
	return func(s *NodeService) {
		s.debounce = wait
	}
}

func NewNodeService(evaluator *device.Evaluator, logger zerolog.Logger, opts ...NodeServiceOption) *NodeService {
	ctx, cancelFunc := context.WithCancel(context.Background())

	s := &NodeService{
		evaluator:  evaluator,
		logger:     logger,
		buffers:    make(map[string]device.Record),
		debouncers: make(map[string]*device.Debouncer[string]),
		ctx:        ctx,
		cancelFunc: cancelFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process evaluates rec and pushes the facts to every sink. hint names the
// node when the record carries no identity of its own.
func (s *NodeService) Process(ctx context.Context, hint string, rec device.Record) (device.Facts, error) {
	facts := s.evaluator.Evaluate(rec)
	if !device.HasIdentity(rec) && hint != "" {
		facts.NodeID = hint
	}

	var errs []error

	if s.store != nil {
		if err := s.store.Upsert(ctx, models.NodeFromFacts(facts, rec)); err != nil {
			errs = append(errs, fmt.Errorf("failed to store node %s: %w", facts.NodeID, err))
		}
	}

	if s.writer != nil {
		if err := s.writer.WriteFacts(ctx, facts, s.evaluator.Now()); err != nil {
			errs = append(errs, fmt.Errorf("failed to write facts for node %s: %w", facts.NodeID, err))
		}
	}

	for _, b := range s.broadcasters {
		if err := b.BroadcastFacts(facts); err != nil {
			s.logger.Warn().Err(err).
				Str("node_id", facts.NodeID).
				Msg("Failed to broadcast node facts")
		}
	}

	s.logger.Debug().
		Str("node_id", facts.NodeID).
		Bool("online", facts.IsOnline).
		Bool("mqtt", facts.IsMqtt).
		Msg("Processed node")

	return facts, errors.Join(errs...)
}

// Ingest buffers rec and processes the node once no further record for it
// has arrived within the debounce window. Records of one burst are merged.
func (s *NodeService) Ingest(hint string, rec device.Record) {
	key := hint
	if device.HasIdentity(rec) || key == "" {
		key = device.NodeID(rec)
	}

	if s.debounce <= 0 {
		s.processLogged(key, rec)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	s.buffers[key] = device.Merge(s.buffers[key], rec)

	d, ok := s.debouncers[key]
	if !ok {
		d = device.NewDebouncer(s.flush, s.debounce)
		s.debouncers[key] = d
	}
	d.Call(key)
}

func (s *NodeService) flush(key string) {
	s.mu.Lock()
	rec, ok := s.buffers[key]
	delete(s.buffers, key)
	delete(s.debouncers, key)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.processLogged(key, rec)
}

func (s *NodeService) processLogged(hint string, rec device.Record) {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.Process(s.ctx, hint, rec); err != nil {
		s.logger.Error().Err(err).
			Str("node_id", hint).
			Msg("Error processing node")
	}
}

// MarkOffline flags stored nodes whose last activity is older than the
// active threshold as offline, and those older than the recently-active
// threshold as inactive. It is a no-op without a store that supports it.
func (s *NodeService) MarkOffline(ctx context.Context) error {
	marker, ok := s.store.(OfflineMarker)
	if !ok {
		return nil
	}

	now := s.evaluator.Now()

	offline, err := marker.MarkOffline(ctx, now.Add(-s.evaluator.ActiveThreshold()))
	if err != nil {
		return fmt.Errorf("failed to mark offline nodes: %w", err)
	}

	inactive, err := marker.MarkInactive(ctx, now.Add(-s.evaluator.RecentlyActiveThreshold()))
	if err != nil {
		return fmt.Errorf("failed to mark inactive nodes: %w", err)
	}

	if offline > 0 || inactive > 0 {
		s.logger.Info().
			Int64("offline", offline).
			Int64("inactive", inactive).
			Msg("Swept stale nodes")
	}
	return nil
}

// Stop drops pending debounced records and rejects further ingests.
func (s *NodeService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelFunc()
	for key, d := range s.debouncers {
		d.Stop()
		delete(s.debouncers, key)
	}
	s.buffers = make(map[string]device.Record)
}
