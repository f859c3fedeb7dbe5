package metricsengine

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/zscore"
	"MarketSentry/pkg/logger"
)

// TrackedMetrics lists which metric names get z-score composition. The
// engine never computes a z-score for a metric not in this set, per spec
// §4.2's "the engine never computes z-scores synchronously for unrelated
// metrics".
type TrackedMetrics map[string]bool

// DefaultTrackedMetrics tracks the metrics the detector's default alert
// definitions require a z-score for.
func DefaultTrackedMetrics() TrackedMetrics {
	return TrackedMetrics{
		models.MetricSpreadBps:       true,
		models.MetricBasisBps:        true,
		models.MetricCrossVenueBps:   true,
		models.MetricImbalance10Bps:  true,
		models.MetricMarkIndexDevBps: true,
	}
}

// Engine wires book-level, paired, and ticker-derived metric computation to
// the z-score engine. It is owned by a single task (the pipeline's engine
// task, which receives every venue's snapshots), consistent with the
// z-score engine's single-owner requirement.
type Engine struct {
	depthLevels DepthLevelsBps
	tracked     TrackedMetrics
	zscores     *zscore.Engine
	log         *logger.Logger

	basisStaleness time.Duration
	pairs          map[string]*PairTracker
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithDepthLevels(levels DepthLevelsBps) Option {
	return func(e *Engine) { e.depthLevels = levels }
}

func WithTrackedMetrics(tracked TrackedMetrics) Option {
	return func(e *Engine) { e.tracked = tracked }
}

func WithPairStaleness(d time.Duration) Option {
	return func(e *Engine) { e.basisStaleness = d }
}

// New creates a metrics engine backed by the given z-score engine.
func New(zscoreEngine *zscore.Engine, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		depthLevels:    DefaultDepthLevelsBps(),
		tracked:        DefaultTrackedMetrics(),
		zscores:        zscoreEngine,
		log:            log,
		basisStaleness: 5 * time.Second,
		pairs:          make(map[string]*PairTracker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessBook computes every per-snapshot book metric and attaches z-scores
// for tracked metrics, returning the samples to publish onto the metrics
// bus. This is synchronous and must stay allocation-light per the 1ms
// budget; it never blocks on I/O.
func (e *Engine) ProcessBook(snap *models.OrderBookSnapshot) []models.MetricSample {
	bm := ComputeBookMetrics(snap, e.depthLevels)
	at := snap.LocalTime
	venue, instrument := snap.Venue, snap.Instrument

	var samples []models.MetricSample

	if bm.SpreadBps != nil {
		samples = append(samples, e.withZScore(models.MetricSpreadBps, venue, instrument, *bm.SpreadBps, at))
	}
	if bm.SpreadAbsolute != nil {
		samples = append(samples, e.withZScore(models.MetricSpreadAbsolute, venue, instrument, *bm.SpreadAbsolute, at))
	}
	for _, n := range e.depthLevels {
		suffix := strconv.Itoa(n)
		samples = append(samples,
			e.withZScore(models.MetricDepthBidPrefix+suffix, venue, instrument, bm.DepthBidBps[n], at),
			e.withZScore(models.MetricDepthAskPrefix+suffix, venue, instrument, bm.DepthAskBps[n], at),
			e.withZScore(models.MetricDepthTotalPrefix+suffix, venue, instrument, bm.DepthTotalBps[n], at),
		)
	}
	if bm.Imbalance10Bps != nil {
		samples = append(samples, e.withZScore(models.MetricImbalance10Bps, venue, instrument, *bm.Imbalance10Bps, at))
	}

	return samples
}

// ProcessTicker computes the ticker-derived mark-index deviation, if
// applicable.
func (e *Engine) ProcessTicker(t *models.TickerSnapshot) []models.MetricSample {
	dev, ok := MarkIndexDeviationBps(t)
	if !ok {
		return nil
	}
	return []models.MetricSample{e.withZScore(models.MetricMarkIndexDevBps, t.Venue, t.Instrument, dev, t.LocalTime)}
}

// pairTracker registers or fetches the tracker for a basis/cross-venue pair
// identified by (kind, instrument, labelA, labelB). Callers supply a
// consistent key so repeated updates land on the same tracker.
func (e *Engine) pairTracker(kind PairKind, instrument, labelA, labelB string) *PairTracker {
	key := strconv.Itoa(int(kind)) + "|" + labelA + "|" + labelB + "|" + instrument
	t, ok := e.pairs[key]
	if !ok {
		t = NewPairTracker(kind, instrument, labelA, labelB, e.basisStaleness)
		e.pairs[key] = t
	}
	return t
}

// UpdateBasisPerp feeds the perpetual side of a basis pair (perp mid vs spot
// mid for the same instrument on the configured spot venue).
func (e *Engine) UpdateBasisPerp(instrument, perpVenue, spotVenue string, mid decimal.Decimal, at time.Time) []models.MetricSample {
	t := e.pairTracker(PairBasis, instrument, perpVenue, spotVenue)
	sample, ok := t.UpdateA(mid, at)
	return e.attachPairZScore(sample, ok)
}

// UpdateBasisSpot feeds the spot side of a basis pair.
func (e *Engine) UpdateBasisSpot(instrument, perpVenue, spotVenue string, mid decimal.Decimal, at time.Time) []models.MetricSample {
	t := e.pairTracker(PairBasis, instrument, perpVenue, spotVenue)
	sample, ok := t.UpdateB(mid, at)
	return e.attachPairZScore(sample, ok)
}

// UpdateCrossVenue feeds one venue's mid for cross-venue divergence on the
// given instrument; side distinguishes venueA from venueB.
func (e *Engine) UpdateCrossVenue(instrument, venueA, venueB string, sideIsA bool, mid decimal.Decimal, at time.Time) []models.MetricSample {
	t := e.pairTracker(PairCrossVenue, instrument, venueA, venueB)
	var sample models.MetricSample
	var ok bool
	if sideIsA {
		sample, ok = t.UpdateA(mid, at)
	} else {
		sample, ok = t.UpdateB(mid, at)
	}
	return e.attachPairZScore(sample, ok)
}

func (e *Engine) attachPairZScore(sample models.MetricSample, ok bool) []models.MetricSample {
	if !ok {
		return nil
	}
	return []models.MetricSample{e.withZScore(sample.MetricName, sample.Venue, sample.Instrument, sample.Value, sample.Timestamp)}
}

// withZScore builds a MetricSample and, for tracked metrics, composes the
// z-score engine's output onto it. Absence is preserved verbatim.
func (e *Engine) withZScore(metric, venue, instrument string, value decimal.Decimal, at time.Time) models.MetricSample {
	sample := models.MetricSample{
		MetricName: metric,
		Venue:      venue,
		Instrument: instrument,
		Timestamp:  at,
		Value:      value,
	}
	if !e.tracked[metric] {
		return sample
	}
	z, ok := e.zscores.AddSample(metric, venue, instrument, value, at)
	if !ok {
		return sample
	}
	return sample.WithZScore(z)
}

// Reset forwards a gap-triggered reset to the underlying z-score engine.
func (e *Engine) Reset(venue, instrument, reason string) {
	e.zscores.Reset(venue, instrument, reason)
}
