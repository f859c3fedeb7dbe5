package zscore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/pkg/logger"
)

// key identifies one ring buffer. States are never shared across keys.
type key struct {
	metric     string
	venue      string
	instrument string
}

// Engine owns the full set of per-(metric, venue, instrument) States. It is
// not safe for concurrent use by design — the z-score engine is a single
// task per spec.md §5's "shared resources" rule, mutated only by the
// goroutine that calls AddSample/Reset.
type Engine struct {
	cfg    Config
	log    *logger.Logger
	states map[key]*State
}

// New creates an Engine with the given window/warmup/guard configuration.
func New(cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		log:    log,
		states: make(map[key]*State),
	}
}

func (e *Engine) stateFor(k key) *State {
	s, ok := e.states[k]
	if !ok {
		s = NewState(k.metric, k.venue, k.instrument, e.cfg)
		e.states[k] = s
	}
	return s
}

// AddSample appends value to the rolling window for (metric, venue,
// instrument) and returns a z-score, or absence per the engine's guards:
// warmup (count < min_samples), flat-market (stdev < min_std). The returned
// bool is false whenever the z-score is absent; absence must be
// distinguishable from a zero z-score value by callers.
func (e *Engine) AddSample(metric, venue, instrument string, value decimal.Decimal, at time.Time) (decimal.Decimal, bool) {
	s := e.stateFor(key{metric: metric, venue: venue, instrument: instrument})
	s.push(value)

	if s.count < s.cfg.MinSamples {
		e.logWarmupProgress(s, at)
		return decimal.Zero, false
	}

	mean, stdev := s.meanStdev()
	if stdev.LessThan(s.cfg.MinStd) {
		return decimal.Zero, false
	}

	if !s.warmedUp {
		s.warmedUp = true
		if e.log != nil {
			e.log.Info("zscore warmed up", logger.String("metric", metric), logger.String("venue", venue), logger.String("instrument", instrument))
		}
	}

	z := value.Sub(mean).Div(stdev).Round(4)
	return z, true
}

func (e *Engine) logWarmupProgress(s *State, at time.Time) {
	if e.log == nil {
		return
	}
	if !s.lastWarmupLog.IsZero() && at.Sub(s.lastWarmupLog) < s.cfg.WarmupLogInterval {
		return
	}
	s.lastWarmupLog = at
	e.log.Debug("zscore warmup progress",
		logger.String("metric", s.MetricName),
		logger.String("venue", s.Venue),
		logger.String("instrument", s.Instrument),
		logger.Int("sample_count", s.count),
		logger.Int("min_samples", s.cfg.MinSamples),
	)
}

// Reset clears the ring buffer for every metric tracked on (venue,
// instrument). Called by the pipeline when a GapMarker of sufficient
// duration arrives for that venue/instrument; it never targets a single
// metric, since a connection-level gap invalidates every metric's prior
// distribution for that key.
func (e *Engine) Reset(venue, instrument, reason string) {
	for k, s := range e.states {
		if k.venue != venue || k.instrument != instrument {
			continue
		}
		s.reset()
		if e.log != nil {
			e.log.Info("zscore state reset",
				logger.String("metric", k.metric),
				logger.String("venue", venue),
				logger.String("instrument", instrument),
				logger.String("reason", reason),
			)
		}
	}
}

// Status returns the status projection for one metric key, and whether a
// state exists yet for it.
func (e *Engine) Status(metric, venue, instrument string) (Status, bool) {
	s, ok := e.states[key{metric: metric, venue: venue, instrument: instrument}]
	if !ok {
		return Status{}, false
	}
	return s.Status(), true
}

// Forget destroys the state for one metric key, used on venue-instrument
// unsubscribe per the spec's ZScoreState lifecycle.
func (e *Engine) Forget(metric, venue, instrument string) {
	delete(e.states, key{metric: metric, venue: venue, instrument: instrument})
}

func (k key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.venue, k.instrument, k.metric)
}
