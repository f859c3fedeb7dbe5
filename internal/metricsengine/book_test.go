package metricsengine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

func level(price, qty float64) models.PriceLevel {
	return models.PriceLevel{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(qty)}
}

func TestComputeBookMetrics_SpreadAndMid(t *testing.T) {
	snap := &models.OrderBookSnapshot{
		Venue: "binance", Instrument: "BTC-USDT",
		LocalTime: time.Now(),
		Bids:      []models.PriceLevel{level(100, 1)},
		Asks:      []models.PriceLevel{level(101, 1)},
	}
	m := ComputeBookMetrics(snap, DefaultDepthLevelsBps())
	if m.Mid == nil || !m.Mid.Equal(decimal.NewFromFloat(100.5)) {
		t.Fatalf("expected mid 100.5, got %v", m.Mid)
	}
	if m.SpreadAbsolute == nil || !m.SpreadAbsolute.Equal(decimal.NewFromFloat(1)) {
		t.Fatalf("expected spread_absolute 1, got %v", m.SpreadAbsolute)
	}
	wantBps := decimal.NewFromFloat(1).Div(decimal.NewFromFloat(100.5)).Mul(decimal.NewFromInt(10000))
	if m.SpreadBps == nil || !m.SpreadBps.Equal(wantBps) {
		t.Fatalf("expected spread_bps %v, got %v", wantBps, m.SpreadBps)
	}
}

func TestComputeBookMetrics_EmptyBookIsAbsent(t *testing.T) {
	snap := &models.OrderBookSnapshot{Venue: "binance", Instrument: "BTC-USDT", LocalTime: time.Now()}
	m := ComputeBookMetrics(snap, DefaultDepthLevelsBps())
	if m.Mid != nil || m.SpreadBps != nil || m.Imbalance10Bps != nil {
		t.Fatalf("expected all dependent metrics absent for an empty book, got %+v", m)
	}
}

func TestComputeBookMetrics_DepthWindowInclusion(t *testing.T) {
	snap := &models.OrderBookSnapshot{
		Venue: "binance", Instrument: "BTC-USDT",
		LocalTime: time.Now(),
		Bids:      []models.PriceLevel{level(100, 1), level(99, 1)},
		Asks:      []models.PriceLevel{level(101, 1), level(110, 1)},
	}
	m := ComputeBookMetrics(snap, DepthLevelsBps{50})
	// mid = 100.5; bid threshold = 100.5*(1-0.005) = 99.9975; only the 100 level qualifies.
	// ask threshold = 100.5*(1+0.005) = 101.0025; only the 101 level qualifies.
	wantBid := decimal.NewFromFloat(100)
	wantAsk := decimal.NewFromFloat(101)
	if !m.DepthBidBps[50].Equal(wantBid) {
		t.Fatalf("expected bid depth-at-50bps %v, got %v", wantBid, m.DepthBidBps[50])
	}
	if !m.DepthAskBps[50].Equal(wantAsk) {
		t.Fatalf("expected ask depth-at-50bps %v, got %v", wantAsk, m.DepthAskBps[50])
	}
}

func TestComputeBookMetrics_ImbalanceRange(t *testing.T) {
	snap := &models.OrderBookSnapshot{
		Venue: "binance", Instrument: "BTC-USDT",
		LocalTime: time.Now(),
		Bids:      []models.PriceLevel{level(100, 10)},
		Asks:      []models.PriceLevel{level(100.01, 1)},
	}
	m := ComputeBookMetrics(snap, DefaultDepthLevelsBps())
	if m.Imbalance10Bps == nil {
		t.Fatalf("expected imbalance to be defined")
	}
	if m.Imbalance10Bps.LessThan(decimal.NewFromInt(-1)) || m.Imbalance10Bps.GreaterThan(decimal.NewFromInt(1)) {
		t.Fatalf("imbalance out of [-1,1] range: %v", m.Imbalance10Bps)
	}
	if !m.Imbalance10Bps.GreaterThan(decimal.Zero) {
		t.Fatalf("expected positive imbalance (more bid depth), got %v", m.Imbalance10Bps)
	}
}

func TestMarkIndexDeviationBps_AbsentWithoutPerpFields(t *testing.T) {
	tk := &models.TickerSnapshot{Venue: "binance", Instrument: "BTC-USDT", LastPrice: decimal.NewFromFloat(100)}
	_, ok := MarkIndexDeviationBps(tk)
	if ok {
		t.Fatalf("expected absent mark-index deviation for a spot ticker with no mark/index")
	}
}

func TestMarkIndexDeviationBps_Computed(t *testing.T) {
	mark := decimal.NewFromFloat(100.1)
	index := decimal.NewFromFloat(100.0)
	tk := &models.TickerSnapshot{Venue: "binance", Instrument: "BTC-USDT-PERP", MarkPrice: &mark, IndexPrice: &index}
	dev, ok := MarkIndexDeviationBps(tk)
	if !ok {
		t.Fatalf("expected mark-index deviation to be defined")
	}
	want := decimal.NewFromFloat(10)
	if !dev.Equal(want) {
		t.Fatalf("expected %v bps, got %v", want, dev)
	}
}
