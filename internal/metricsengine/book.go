// Package metricsengine derives microstructure metrics from normalized
// order-book and ticker snapshots with decimal precision and deterministic
// tie-breaks, per spec section 4.2. Every function here is synchronous,
// allocation-light, and must stay under the 1ms-per-snapshot budget — no
// suspension points belong in this package.
package metricsengine

import (
	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

var (
	ten000 = decimal.NewFromInt(10000)
	two    = decimal.NewFromInt(2)
)

// BookMetrics is the per-snapshot synchronous output set computed from one
// OrderBookSnapshot. Fields are nil when the underlying computation is
// undefined per spec §4.2's edge cases (e.g. an empty book).
type BookMetrics struct {
	Mid            *decimal.Decimal
	SpreadAbsolute *decimal.Decimal
	SpreadBps      *decimal.Decimal

	// DepthBidBps/DepthAskBps/DepthTotalBps are keyed by the configured N
	// (e.g. 5, 10, 25), mirroring the spec's "for each configured N".
	DepthBidBps   map[int]decimal.Decimal
	DepthAskBps   map[int]decimal.Decimal
	DepthTotalBps map[int]decimal.Decimal

	Imbalance10Bps *decimal.Decimal
}

// DepthLevelsBps is the configured set of depth windows. Spec default is
// {5, 10, 25}.
type DepthLevelsBps []int

// DefaultDepthLevelsBps returns the spec's default depth windows.
func DefaultDepthLevelsBps() DepthLevelsBps { return DepthLevelsBps{5, 10, 25} }

// ComputeBookMetrics derives spread, depth-at-N-bps and imbalance from one
// normalized snapshot. snap is assumed already validated by the venue
// adapter (non-crossed, positive, sorted) — this function does not
// re-validate.
func ComputeBookMetrics(snap *models.OrderBookSnapshot, depthLevels DepthLevelsBps) BookMetrics {
	m := BookMetrics{
		DepthBidBps:   make(map[int]decimal.Decimal, len(depthLevels)),
		DepthAskBps:   make(map[int]decimal.Decimal, len(depthLevels)),
		DepthTotalBps: make(map[int]decimal.Decimal, len(depthLevels)),
	}

	bestBid, hasBid := snap.BestBid()
	bestAsk, hasAsk := snap.BestAsk()
	if !hasBid || !hasAsk {
		return m
	}

	mid := bestBid.Price.Add(bestAsk.Price).Div(two)
	m.Mid = &mid

	spreadAbs := bestAsk.Price.Sub(bestBid.Price)
	m.SpreadAbsolute = &spreadAbs

	if !mid.IsZero() {
		spreadBps := spreadAbs.Div(mid).Mul(ten000)
		m.SpreadBps = &spreadBps
	}

	for _, n := range depthLevels {
		bidDepth, askDepth := depthAtBps(snap, mid, n)
		m.DepthBidBps[n] = bidDepth
		m.DepthAskBps[n] = askDepth
		m.DepthTotalBps[n] = bidDepth.Add(askDepth)
	}

	if bidDepth, ok := m.DepthBidBps[10]; ok {
		askDepth := m.DepthAskBps[10]
		denom := bidDepth.Add(askDepth)
		if !denom.IsZero() {
			imbalance := bidDepth.Sub(askDepth).Div(denom)
			m.Imbalance10Bps = &imbalance
		}
	}

	return m
}

// depthAtBps sums notional (price * quantity) for bid levels whose price is
// at or above mid*(1-N/10000), and ask levels whose price is at or below
// mid*(1+N/10000).
func depthAtBps(snap *models.OrderBookSnapshot, mid decimal.Decimal, n int) (bidDepth, askDepth decimal.Decimal) {
	nRatio := decimal.NewFromInt(int64(n)).Div(ten000)
	bidThreshold := mid.Mul(decimal.NewFromInt(1).Sub(nRatio))
	askThreshold := mid.Mul(decimal.NewFromInt(1).Add(nRatio))

	bidDepth = decimal.Zero
	for _, lvl := range snap.Bids {
		if lvl.Price.GreaterThanOrEqual(bidThreshold) {
			bidDepth = bidDepth.Add(lvl.Price.Mul(lvl.Quantity))
		}
	}
	askDepth = decimal.Zero
	for _, lvl := range snap.Asks {
		if lvl.Price.LessThanOrEqual(askThreshold) {
			askDepth = askDepth.Add(lvl.Price.Mul(lvl.Quantity))
		}
	}
	return bidDepth, askDepth
}
