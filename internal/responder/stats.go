package responder

import (
	"sync/atomic"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// Stats is the engine's throughput accounting. All methods are safe for
// concurrent use and never block dispatch.
type Stats struct {
	processed atomic.Int64
	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64

	rate    metrics.Meter // probes per second, one/five/fifteen minute moving averages
	started time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Processed int64   `json:"processed"`
	Dropped   int64   `json:"dropped"`
	Delivered int64   `json:"delivered"`
	Failed    int64   `json:"failed"`
	Rate1     float64 `json:"rate1"`
	Rate5     float64 `json:"rate5"`
	RateMean  float64 `json:"rateMean"`
	Uptime    string  `json:"uptime"`
}

func newStats() *Stats {
	return &Stats{
		rate:    metrics.NewMeter(),
		started: time.Now(),
	}
}

func (s *Stats) markProcessed() {
	s.processed.Add(1)
	s.rate.Mark(1)
}

// Processed returns the number of probes dispatched to plugins.
func (s *Stats) Processed() int64 { return s.processed.Load() }

// Dropped returns the number of probes discarded before dispatch.
func (s *Stats) Dropped() int64 { return s.dropped.Load() }

// Rate returns the one minute moving average of probes per second.
func (s *Stats) Rate() float64 { return s.rate.Rate1() }

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	m := s.rate.Snapshot()
	return StatsSnapshot{
		Processed: s.processed.Load(),
		Dropped:   s.dropped.Load(),
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Rate1:     m.Rate1(),
		Rate5:     m.Rate5(),
		RateMean:  m.RateMean(),
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
	}
}

func (s *Stats) stop() {
	s.rate.Stop()
}
