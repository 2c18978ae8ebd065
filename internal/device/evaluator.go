package device

import (
	"time"

	"golang.org/x/text/message"
	"mesh-map-sync/internal/config"
)

// Evaluator classifies record freshness against the configured thresholds.
// It holds no per-record state and is safe for concurrent use.
type Evaluator struct {
	active   time.Duration
	recently time.Duration
	now      func() time.Time
	printer  *message.Printer
}

type EvaluatorOption func(*Evaluator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.now = now
	}
}

func NewEvaluator(cfg config.DeviceConfig, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		active:   cfg.ActiveThreshold,
		recently: cfg.RecentlyActiveThreshold,
		now:      time.Now,
		printer:  newPrinter(cfg.Locale),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) ActiveThreshold() time.Duration {
	return e.active
}

func (e *Evaluator) RecentlyActiveThreshold() time.Duration {
	return e.recently
}

// Now is the evaluator's clock.
func (e *Evaluator) Now() time.Time {
	return e.now()
}

// IsOnline and IsActive share the active threshold.
func (e *Evaluator) IsOnline(rec Record) bool {
	return e.within(rec, e.active)
}

func (e *Evaluator) IsActive(rec Record) bool {
	return e.within(rec, e.active)
}

func (e *Evaluator) IsRecentlyActive(rec Record) bool {
	return e.within(rec, e.recently)
}

func (e *Evaluator) within(rec Record, threshold time.Duration) bool {
	ts, ok := LatestTimestamp(rec)
	if !ok {
		return false
	}
	return e.elapsedSeconds(ts) < threshold.Seconds()
}

func (e *Evaluator) elapsedSeconds(ts float64) float64 {
	nowMs := float64(e.now().UnixMilli())
	return (nowMs - ts*1000) / 1000
}

// TimeAgo renders the time elapsed since t in the evaluator's locale.
func (e *Evaluator) TimeAgo(t time.Time) string {
	return formatElapsed(e.printer, e.now().Sub(t))
}

// Facts is the canonical view of one record. It is recomputed on every call
// and never cached.
type Facts struct {
	NodeID           string       `json:"nodeId"`
	DisplayName      string       `json:"displayName,omitempty"`
	HasName          bool         `json:"-"`
	Coordinates      *Coordinates `json:"coordinates"`
	LatestTimestamp  *float64     `json:"latestTimestamp"`
	IsOnline         bool         `json:"isOnline"`
	IsActive         bool         `json:"isActive"`
	IsRecentlyActive bool         `json:"isRecentlyActive"`
	IsMqtt           bool         `json:"isMqtt"`
	LastSeen         string       `json:"lastSeen,omitempty"`
}

func (e *Evaluator) Evaluate(rec Record) Facts {
	facts := Facts{
		NodeID:           NodeID(rec),
		IsOnline:         e.IsOnline(rec),
		IsActive:         e.IsActive(rec),
		IsRecentlyActive: e.IsRecentlyActive(rec),
		IsMqtt:           IsMqttNode(rec),
	}

	facts.DisplayName, facts.HasName = DisplayName(rec)

	if coords, ok := CoordinatesOf(rec); ok {
		facts.Coordinates = &coords
	}

	if ts, ok := LatestTimestamp(rec); ok {
		facts.LatestTimestamp = &ts
		facts.LastSeen = e.TimeAgo(secondsToTime(ts))
	}

	return facts
}

// LastSeenTime converts LatestTimestamp to a time.Time.
func (f Facts) LastSeenTime() (time.Time, bool) {
	if f.LatestTimestamp == nil {
		return time.Time{}, false
	}
	return secondsToTime(*f.LatestTimestamp), true
}

func secondsToTime(ts float64) time.Time {
	return time.UnixMilli(int64(ts * 1000))
}
