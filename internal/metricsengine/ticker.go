package metricsengine

import (
	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

// MarkIndexDeviationBps computes (mark - index) / index * 10000. Returns
// false when either price is absent (spot instruments carry neither) or
// index is zero.
func MarkIndexDeviationBps(t *models.TickerSnapshot) (decimal.Decimal, bool) {
	if t.MarkPrice == nil || t.IndexPrice == nil {
		return decimal.Zero, false
	}
	index := *t.IndexPrice
	if index.IsZero() {
		return decimal.Zero, false
	}
	dev := t.MarkPrice.Sub(index).Div(index).Mul(ten000)
	return dev, true
}
