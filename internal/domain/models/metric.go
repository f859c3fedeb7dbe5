package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricSample is one observation of a named metric for a (venue, instrument)
// pair, optionally carrying a z-score. ZScore is nil whenever the z-score
// engine is in warmup or a guarded state — absence must be distinguishable
// from a computed zero.
type MetricSample struct {
	MetricName string
	Venue      string
	Instrument string
	Timestamp  time.Time
	Value      decimal.Decimal
	ZScore     *decimal.Decimal
}

// WithZScore returns a copy of the sample carrying the given z-score.
func (m MetricSample) WithZScore(z decimal.Decimal) MetricSample {
	m.ZScore = &z
	return m
}

// Well-known metric names used across the metrics engine and detector.
const (
	MetricSpreadAbsolute     = "spread_absolute"
	MetricSpreadBps          = "spread_bps"
	MetricDepthBidPrefix     = "depth_bid_bps_"
	MetricDepthAskPrefix     = "depth_ask_bps_"
	MetricDepthTotalPrefix   = "depth_total_bps_"
	MetricImbalance10Bps     = "imbalance_10bps"
	MetricBasisAbsolute      = "basis_absolute"
	MetricBasisBps           = "basis_bps"
	MetricCrossVenueBps      = "cross_venue_divergence_bps"
	MetricMarkIndexDevBps    = "mark_index_deviation_bps"
)
