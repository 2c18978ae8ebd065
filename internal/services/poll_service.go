package services

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"mesh-map-sync/internal/device"
	"time"
)

// Fetcher is the part of the telemetry facade the poller needs.
type Fetcher interface {
	GetNodeInfo(ctx context.Context, nodeID any) any
	GetPositionInfo(ctx context.Context, nodeID any) any
	GetDeviceMetrics(ctx context.Context, nodeID any) any
	GetTelemetryInfo(ctx context.Context, nodeID any) any
}

type RecordProcessor interface {
	Process(ctx context.Context, hint string, rec device.Record) (device.Facts, error)
}

type Sweeper interface {
	MarkOffline(ctx context.Context) error
}

type PollService struct {
	fetcher   Fetcher
	processor RecordProcessor
	sweeper   Sweeper
	nodeIDs   []string
	interval  time.Duration
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// NewPollService polls nodeIDs every interval, issuing at most ratePerSec
// node collections per second. sweeper may be nil.
func NewPollService(fetcher Fetcher, processor RecordProcessor, sweeper Sweeper, nodeIDs []string, interval time.Duration, ratePerSec float64, logger zerolog.Logger) *PollService {
	return &PollService{
		fetcher:   fetcher,
		processor: processor,
		sweeper:   sweeper,
		nodeIDs:   nodeIDs,
		interval:  interval,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:    logger,
	}
}

type categoryFetch struct {
	name  string
	fetch func(ctx context.Context, nodeID any) any
}

// Collect fetches the node's categories concurrently and merges them into
// one record. Object payloads are merged at the top level, anything else is
// stored under the category name. Records without an identity get nodeID as
// device_id. The bool is false when every category came back empty.
func (s *PollService) Collect(ctx context.Context, nodeID string) (device.Record, bool) {
	categories := []categoryFetch{
		{name: "nodeinfo", fetch: s.fetcher.GetNodeInfo},
		{name: "position", fetch: s.fetcher.GetPositionInfo},
		{name: "deviceMetrics", fetch: s.fetcher.GetDeviceMetrics},
		{name: "telemetry", fetch: s.fetcher.GetTelemetryInfo},
	}
	results := make([]any, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range categories {
		i, c := i, c
		g.Go(func() error {
			results[i] = c.fetch(gctx, nodeID)
			return nil
		})
	}
	_ = g.Wait()

	parts := make([]device.Record, 0, len(results))
	for i, payload := range results {
		switch p := payload.(type) {
		case nil:
		case map[string]any:
			parts = append(parts, device.Record(p))
		default:
			parts = append(parts, device.Record{categories[i].name: p})
		}
	}
	if len(parts) == 0 {
		return nil, false
	}

	rec := device.Merge(parts...)
	if !device.HasIdentity(rec) {
		rec["device_id"] = nodeID
	}
	return rec, true
}

// PollOnce collects and processes every configured node once. It returns the
// number of nodes processed.
func (s *PollService) PollOnce(ctx context.Context) (int, error) {
	processed := 0

	for _, nodeID := range s.nodeIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			return processed, fmt.Errorf("poll interrupted: %w", err)
		}

		rec, ok := s.Collect(ctx, nodeID)
		if !ok {
			s.logger.Warn().Str("node_id", nodeID).Msg("No telemetry available for node")
			continue
		}

		if _, err := s.processor.Process(ctx, nodeID, rec); err != nil {
			s.logger.Error().Err(err).
				Str("node_id", nodeID).
				Msg("Error processing polled node")
			continue
		}
		processed++
	}

	return processed, nil
}

// Run polls immediately and then every interval until ctx is done. With no
// configured nodes it still runs the offline sweep on every tick.
func (s *PollService) Run(ctx context.Context) {
	if len(s.nodeIDs) == 0 {
		s.logger.Info().Msg("No nodes configured for polling, running offline sweep only")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *PollService) tick(ctx context.Context) {
	n, err := s.PollOnce(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Int("processed", n).Msg("Poll cycle aborted")
		return
	}

	s.logger.Debug().Int("processed", n).Int("configured", len(s.nodeIDs)).Msg("Poll cycle finished")

	if s.sweeper != nil {
		if err := s.sweeper.MarkOffline(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to sweep offline nodes")
		}
	}
}
