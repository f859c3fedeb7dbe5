package zscore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestAddSample_WarmupSuppression(t *testing.T) {
	e := New(DefaultConfig(), nil)
	base := time.Now()

	for i := 0; i < 29; i++ {
		_, ok := e.AddSample("spread_bps", "binance", "BTC-USDT", d(5.0), base.Add(time.Duration(i)*time.Second))
		if ok {
			t.Fatalf("sample %d: expected absent z-score during warmup, got a value", i)
		}
	}
}

func TestAddSample_FiresOnThirtiethWithVariance(t *testing.T) {
	e := New(DefaultConfig(), nil)
	base := time.Now()

	for i := 0; i < 29; i++ {
		e.AddSample("spread_bps", "binance", "BTC-USDT", d(2.0+float64(i%2)*0.5), base.Add(time.Duration(i)*time.Second))
	}
	_, ok := e.AddSample("spread_bps", "binance", "BTC-USDT", d(2.5), base.Add(29*time.Second))
	if !ok {
		t.Fatalf("expected a z-score on the 30th sample with variance present")
	}
}

func TestAddSample_FlatMarketGuard(t *testing.T) {
	e := New(DefaultConfig(), nil)
	base := time.Now()

	for i := 0; i < 40; i++ {
		_, ok := e.AddSample("spread_bps", "binance", "BTC-USDT", d(2.0), base.Add(time.Duration(i)*time.Second))
		if ok {
			t.Fatalf("sample %d: identical values must never produce a z-score (stdev == 0)", i)
		}
	}
}

func TestReset_ClearsWarmupAndSampleCount(t *testing.T) {
	e := New(DefaultConfig(), nil)
	base := time.Now()

	for i := 0; i < 50; i++ {
		e.AddSample("spread_bps", "okx", "ETH-USDT", d(2.0+float64(i%3)*0.1), base.Add(time.Duration(i)*time.Second))
	}
	status, ok := e.Status("spread_bps", "okx", "ETH-USDT")
	if !ok || status.SampleCount != 50 {
		t.Fatalf("expected sample_count 50 before reset, got %+v (ok=%v)", status, ok)
	}

	e.Reset("okx", "ETH-USDT", "gap")

	status, ok = e.Status("spread_bps", "okx", "ETH-USDT")
	if !ok {
		t.Fatalf("expected state to still exist after reset, just cleared")
	}
	if status.WarmedUp || status.SampleCount != 0 {
		t.Fatalf("expected cleared state after reset, got %+v", status)
	}

	_, fired := e.AddSample("spread_bps", "okx", "ETH-USDT", d(2.0), base.Add(51*time.Second))
	if fired {
		t.Fatalf("first sample after reset must return absent (re-warming up)")
	}
}

func TestReset_OnlyAffectsMatchingVenueInstrument(t *testing.T) {
	e := New(DefaultConfig(), nil)
	base := time.Now()

	for i := 0; i < 40; i++ {
		e.AddSample("spread_bps", "binance", "BTC-USDT", d(2.0+float64(i%2)*0.2), base.Add(time.Duration(i)*time.Second))
		e.AddSample("spread_bps", "okx", "BTC-USDT", d(3.0+float64(i%2)*0.2), base.Add(time.Duration(i)*time.Second))
	}

	e.Reset("binance", "BTC-USDT", "gap")

	binanceStatus, _ := e.Status("spread_bps", "binance", "BTC-USDT")
	okxStatus, _ := e.Status("spread_bps", "okx", "BTC-USDT")
	if binanceStatus.SampleCount != 0 {
		t.Fatalf("expected binance state cleared, got %+v", binanceStatus)
	}
	if okxStatus.SampleCount != 40 {
		t.Fatalf("expected okx state untouched, got %+v", okxStatus)
	}
}
