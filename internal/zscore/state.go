// Package zscore implements the rolling-window z-score engine: a bounded
// ring buffer per (metric, venue, instrument) that is safe in the
// statistical sense — it never emits during warmup, never divides by
// near-zero variance, and resets whenever a data gap invalidates the prior
// distribution.
package zscore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config tunes one State's guards. Zero values are replaced with the
// package defaults by NewState.
type Config struct {
	WindowSize        int           // ring buffer capacity, default 300
	MinSamples        int           // warmup floor, default 30
	MinStd            decimal.Decimal // flat-market guard, default 0.0001
	WarmupLogInterval time.Duration // default 30s
}

// DefaultConfig returns the spec's default guard values.
func DefaultConfig() Config {
	return Config{
		WindowSize:        300,
		MinSamples:        30,
		MinStd:            decimal.NewFromFloat(0.0001),
		WarmupLogInterval: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = 300
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 30
	}
	if c.MinStd.IsZero() {
		c.MinStd = decimal.NewFromFloat(0.0001)
	}
	if c.WarmupLogInterval <= 0 {
		c.WarmupLogInterval = 30 * time.Second
	}
	return c
}

// State is the engine-internal bounded ring buffer for one
// (metric, venue, instrument) triple. It is created lazily on first sample,
// cleared on gap reset, and destroyed on venue-instrument unsubscribe. State
// is not safe for concurrent use; it is owned by a single task per spec's
// per-key state ownership rule.
type State struct {
	MetricName string
	Venue      string
	Instrument string

	cfg Config

	buf      []decimal.Decimal
	head     int
	count    int
	warmedUp bool

	lastWarmupLog time.Time
}

// NewState creates a lazily-initialized ring buffer for one metric key.
func NewState(metricName, venue, instrument string, cfg Config) *State {
	cfg = cfg.withDefaults()
	return &State{
		MetricName: metricName,
		Venue:      venue,
		Instrument: instrument,
		cfg:        cfg,
		buf:        make([]decimal.Decimal, 0, cfg.WindowSize),
	}
}

// Status is the externally visible projection of a State, used by the hot
// store and the UI.
type Status struct {
	WarmedUp        bool
	SampleCount     int
	MinSamples      int
	ProgressPercent float64
}

// status returns the current Status projection. Callers hold no lock;
// State is single-owner.
func (s *State) status() Status {
	progress := float64(s.count) / float64(s.cfg.MinSamples) * 100
	if progress > 100 {
		progress = 100
	}
	return Status{
		WarmedUp:        s.warmedUp,
		SampleCount:     s.count,
		MinSamples:      s.cfg.MinSamples,
		ProgressPercent: progress,
	}
}

// Status exposes the current warmup/sample-count projection.
func (s *State) Status() Status { return s.status() }

// push appends value into the ring buffer, evicting the oldest sample once
// full.
func (s *State) push(value decimal.Decimal) {
	if len(s.buf) < s.cfg.WindowSize {
		s.buf = append(s.buf, value)
	} else {
		s.buf[s.head] = value
		s.head = (s.head + 1) % s.cfg.WindowSize
	}
	if s.count < s.cfg.WindowSize {
		s.count++
	}
}

// meanStdev recomputes mean and sample standard deviation over the current
// window by direct summation, per the design note preferring simple
// recomputation over running sums for numerical stability with decimals.
func (s *State) meanStdev() (mean, stdev decimal.Decimal) {
	n := len(s.buf)
	if n == 0 {
		return decimal.Zero, decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range s.buf {
		sum = sum.Add(v)
	}
	mean = sum.Div(decimal.NewFromInt(int64(n)))

	if n < 2 {
		return mean, decimal.Zero
	}
	sumSq := decimal.Zero
	for _, v := range s.buf {
		d := v.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(n - 1)))
	stdev = sqrtDecimal(variance)
	return mean, stdev
}

// reset empties the buffer and clears warmup state. Called by the pipeline
// only when a GapMarker with duration >= reset_on_gap_threshold arrives for
// this (venue, instrument).
func (s *State) reset() {
	s.buf = s.buf[:0]
	s.head = 0
	s.count = 0
	s.warmedUp = false
	s.lastWarmupLog = time.Time{}
}
