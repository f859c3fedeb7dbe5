package di

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/config"
)

func ptr(s string) *string { return &s }

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q): %v", s, err)
	}
	return d
}

func TestVenueAdapterConfig_CopiesInstrumentsAndTiming(t *testing.T) {
	v := config.VenueConfig{
		Name:        "binance",
		WSURL:       "wss://example/ws",
		RESTBaseURL: "https://example",
		Instruments: []config.InstrumentConfig{
			{Instrument: "BTC-USDT", VenueSymbol: "BTCUSDT", DepthCaptured: 25},
		},
		PingInterval:      20 * time.Second,
		GapTimeout:        5 * time.Second,
		BackoffMultiplier: 2.0,
		MaxAttempts:       8,
	}

	got := venueAdapterConfig(v)

	if got.Venue != "binance" || got.WSURL != v.WSURL || got.RESTBaseURL != v.RESTBaseURL {
		t.Fatalf("expected identity/url fields to carry over unchanged, got %+v", got)
	}
	if len(got.Instruments) != 1 || got.Instruments[0].Instrument != "BTC-USDT" || got.Instruments[0].VenueSymbol != "BTCUSDT" {
		t.Fatalf("expected instrument to carry over, got %+v", got.Instruments)
	}
	if got.PingInterval != v.PingInterval || got.GapTimeout != v.GapTimeout {
		t.Fatalf("expected timing fields to carry over unchanged, got %+v", got)
	}
}

func TestAlertDefinitionsFromConfig_ConvertsSecondsToDuration(t *testing.T) {
	defs := []config.AlertDefConfig{
		{
			AlertType:          "spread_warning",
			MetricName:         "spread_bps",
			DefaultPriority:    "P2",
			Comparison:         "gt",
			PersistenceSeconds: 10,
			ThrottleSeconds:    60,
			EscalationSeconds:  120,
			EscalatesTo:        "spread_critical",
			Enabled:            true,
		},
	}

	got := alertDefinitionsFromConfig(defs)

	if len(got) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(got))
	}
	d := got[0]
	if d.PersistenceSeconds != 10*time.Second {
		t.Fatalf("expected 10s persistence, got %v", d.PersistenceSeconds)
	}
	if d.ThrottleSeconds != 60*time.Second {
		t.Fatalf("expected 60s throttle, got %v", d.ThrottleSeconds)
	}
	if d.EscalationSeconds != 120*time.Second {
		t.Fatalf("expected 120s escalation, got %v", d.EscalationSeconds)
	}
	if d.DefaultPriority != models.PriorityP2 {
		t.Fatalf("expected priority P2, got %v", d.DefaultPriority)
	}
	if d.Comparison != models.ComparisonGT {
		t.Fatalf("expected comparison gt, got %v", d.Comparison)
	}
}

func TestThresholdsFromConfig_ParsesDecimalStrings(t *testing.T) {
	ths := []config.ThresholdConfig{
		{AlertType: "spread_warning", Instrument: "BTC-USDT", PrimaryThreshold: "15.5", ZScoreThreshold: ptr("2.0"), Enabled: true},
	}

	got, err := thresholdsFromConfig(ths)
	if err != nil {
		t.Fatalf("thresholdsFromConfig: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 threshold, got %d", len(got))
	}
	if !got[0].PrimaryThreshold.Equal(decimalFromString(t, "15.5")) {
		t.Fatalf("expected primary threshold 15.5, got %v", got[0].PrimaryThreshold)
	}
	if got[0].ZScoreThreshold == nil || !got[0].ZScoreThreshold.Equal(decimalFromString(t, "2.0")) {
		t.Fatalf("expected zscore threshold 2.0, got %v", got[0].ZScoreThreshold)
	}
}

func TestThresholdsFromConfig_MalformedDecimalReturnsError(t *testing.T) {
	ths := []config.ThresholdConfig{
		{AlertType: "spread_warning", Instrument: "BTC-USDT", PrimaryThreshold: "not-a-number", Enabled: true},
	}

	if _, err := thresholdsFromConfig(ths); err == nil {
		t.Fatal("expected an error for a malformed primary_threshold")
	}
}

func TestBasisPairsFromConfig_CarriesVenuesOver(t *testing.T) {
	pairs := []config.BasisPairConfig{{Instrument: "BTC-USDT", PerpVenue: "binance", SpotVenue: "okx"}}
	got := basisPairsFromConfig(pairs)
	if len(got) != 1 || got[0].PerpVenue != "binance" || got[0].SpotVenue != "okx" {
		t.Fatalf("expected the basis pair to carry over, got %+v", got)
	}
}

func TestCrossVenuePairsFromConfig_CarriesVenuesOver(t *testing.T) {
	pairs := []config.CrossVenuePairConfig{{Instrument: "BTC-USDT", VenueA: "binance", VenueB: "okx"}}
	got := crossVenuePairsFromConfig(pairs)
	if len(got) != 1 || got[0].VenueA != "binance" || got[0].VenueB != "okx" {
		t.Fatalf("expected the cross-venue pair to carry over, got %+v", got)
	}
}
