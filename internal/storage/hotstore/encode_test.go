package hotstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

func TestEncodeBook_RoundTripsSequenceAndVenue(t *testing.T) {
	snap := &models.OrderBookSnapshot{
		Venue:      "binance",
		Instrument: "BTC-USDT",
		SequenceID: 7,
		Bids:       []models.PriceLevel{{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)}},
		Asks:       []models.PriceLevel{{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(1)}},
	}
	fields, err := encodeBook(snap)
	if err != nil {
		t.Fatalf("encodeBook: %v", err)
	}
	if fields["venue"] != "binance" || fields["instrument"] != "BTC-USDT" {
		t.Fatalf("expected venue/instrument to round-trip, got %v", fields)
	}
	if fields["sequence_id"] != int64(7) {
		t.Fatalf("expected sequence_id to round-trip, got %v", fields["sequence_id"])
	}
}

func TestEncodeMetricSample_OmitsAbsentZScore(t *testing.T) {
	sample := models.MetricSample{
		MetricName: models.MetricSpreadBps,
		Venue:      "okx",
		Instrument: "BTC-USDT",
		Timestamp:  time.Now(),
		Value:      decimal.NewFromFloat(1.5),
	}
	fields, err := encodeMetricSample(sample)
	if err != nil {
		t.Fatalf("encodeMetricSample: %v", err)
	}
	if _, ok := fields["zscore"]; ok {
		t.Fatalf("expected zscore field to be absent when ZScore is nil")
	}
}

func TestEncodeMetricSample_IncludesZScoreWhenPresent(t *testing.T) {
	z := decimal.NewFromFloat(2.1)
	sample := models.MetricSample{
		MetricName: models.MetricSpreadBps,
		Venue:      "okx",
		Instrument: "BTC-USDT",
		Timestamp:  time.Now(),
		Value:      decimal.NewFromFloat(1.5),
		ZScore:     &z,
	}
	fields, err := encodeMetricSample(sample)
	if err != nil {
		t.Fatalf("encodeMetricSample: %v", err)
	}
	if fields["zscore"] != "2.1" {
		t.Fatalf("expected zscore to round-trip as a decimal string, got %v", fields["zscore"])
	}
}

func TestEncodeAlert_OmitsNilOptionalFields(t *testing.T) {
	alert := &models.Alert{
		ID:               "a1",
		AlertType:        "spread_spike",
		Status:           models.AlertActive,
		Priority:         models.PriorityP2,
		Venue:            "binance",
		Instrument:       "BTC-USDT",
		TriggerMetric:    models.MetricSpreadBps,
		TriggerValue:     decimal.NewFromInt(10),
		TriggerThreshold: decimal.NewFromInt(5),
		Comparison:       models.ComparisonGT,
		TriggeredAt:      time.Now(),
		PeakValue:        decimal.NewFromInt(10),
		PeakAt:           time.Now(),
	}
	fields, err := encodeAlert(alert)
	if err != nil {
		t.Fatalf("encodeAlert: %v", err)
	}
	for _, key := range []string{"zscore_value", "zscore_threshold", "resolved_at", "escalated_at", "resolution_type"} {
		if _, ok := fields[key]; ok {
			t.Fatalf("expected %s to be absent on an unresolved, non-escalated alert", key)
		}
	}
}
