package metricsengine

import (
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

// PairKind distinguishes the two paired-output computations; both are
// "latest mid on each side, diff, emit when either updates and both are
// fresh" but differ in how the two sides are identified.
type PairKind int

const (
	PairBasis PairKind = iota
	PairCrossVenue
)

// pairSide is the latest snapshot seen for one half of a pair.
type pairSide struct {
	mid decimal.Decimal
	at  time.Time
}

// PairTracker maintains the latest mid-price observation for each side of a
// configured pair (perp/spot for basis, venueA/venueB for cross-venue
// divergence) and emits a sample whenever either side updates and both
// sides are within the configured staleness bound.
type PairTracker struct {
	kind       PairKind
	instrument string
	staleness  time.Duration

	// labelA/labelB identify the sides for the caller (e.g. venue names or
	// "perp"/"spot"); PairTracker does not interpret them.
	labelA, labelB string

	a, b     *pairSide
	hasA     bool
	hasB     bool
}

// NewPairTracker creates a tracker for one configured pair.
func NewPairTracker(kind PairKind, instrument, labelA, labelB string, staleness time.Duration) *PairTracker {
	return &PairTracker{
		kind:       kind,
		instrument: instrument,
		staleness:  staleness,
		labelA:     labelA,
		labelB:     labelB,
	}
}

// UpdateA records a fresh mid price for side A and returns a sample if both
// sides are present and fresh enough.
func (t *PairTracker) UpdateA(mid decimal.Decimal, at time.Time) (models.MetricSample, bool) {
	t.a = &pairSide{mid: mid, at: at}
	t.hasA = true
	return t.maybeEmit(at)
}

// UpdateB is the symmetric update for side B.
func (t *PairTracker) UpdateB(mid decimal.Decimal, at time.Time) (models.MetricSample, bool) {
	t.b = &pairSide{mid: mid, at: at}
	t.hasB = true
	return t.maybeEmit(at)
}

func (t *PairTracker) maybeEmit(now time.Time) (models.MetricSample, bool) {
	if !t.hasA || !t.hasB {
		return models.MetricSample{}, false
	}
	if now.Sub(t.a.at) > t.staleness || now.Sub(t.b.at) > t.staleness {
		return models.MetricSample{}, false
	}

	diff := t.a.mid.Sub(t.b.mid)
	var metricName, venueLabel string
	switch t.kind {
	case PairBasis:
		metricName = models.MetricBasisBps
		venueLabel = t.labelA
	default:
		metricName = models.MetricCrossVenueBps
		venueLabel = t.labelA + "/" + t.labelB
	}

	bps := decimal.Zero
	if !t.b.mid.IsZero() {
		bps = diff.Div(t.b.mid).Mul(ten000)
	}

	return models.MetricSample{
		MetricName: metricName,
		Venue:      venueLabel,
		Instrument: t.instrument,
		Timestamp:  now,
		Value:      bps,
	}, true
}
