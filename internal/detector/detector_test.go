package detector

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeMetrics struct {
	skips     []string
	fired     []string
	resolved  []string
	escalated []string
}

func (m *fakeMetrics) RecordSnapshotProcessed(string, string)   {}
func (m *fakeMetrics) RecordGap(string, string)                 {}
func (m *fakeMetrics) RecordAlertFired(alertType, priority string) {
	m.fired = append(m.fired, alertType)
}
func (m *fakeMetrics) RecordAlertResolved(alertType string) { m.resolved = append(m.resolved, alertType) }
func (m *fakeMetrics) RecordAlertEscalated(alertType string) {
	m.escalated = append(m.escalated, alertType)
}
func (m *fakeMetrics) RecordEvaluationSkip(reason string) { m.skips = append(m.skips, reason) }
func (m *fakeMetrics) RecordQueueDepth(string, int)       {}
func (m *fakeMetrics) RecordLatency(string, float64)      {}
func (m *fakeMetrics) RecordError(string)                 {}

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func zscoreWarningDef(persistence, throttle, escalation time.Duration) models.AlertDefinition {
	return models.AlertDefinition{
		AlertType:          "spread_warning",
		MetricName:         "spread_bps",
		DefaultPriority:    models.PriorityP2,
		Comparison:         models.ComparisonGT,
		RequiresZScore:     true,
		PersistenceSeconds: persistence,
		ThrottleSeconds:    throttle,
		EscalationSeconds:  escalation,
		EscalatesTo:        "spread_critical",
		Enabled:            true,
	}
}

func newFixture(def models.AlertDefinition, threshold decimal.Decimal, zThreshold decimal.Decimal) (*Detector, *fakeMetrics, *fakeClock) {
	registry := NewRegistry([]models.AlertDefinition{
		def,
		{AlertType: "spread_critical", MetricName: "spread_bps", DefaultPriority: models.PriorityP1, Comparison: models.ComparisonGT, Enabled: true},
	}, []models.Threshold{
		{AlertType: def.AlertType, Instrument: "*", PrimaryThreshold: threshold, ZScoreThreshold: &zThreshold, Enabled: true},
	})
	clock := &fakeClock{now: time.Now()}
	metrics := &fakeMetrics{}
	return New(registry, clock, nil, metrics, nil, nil, Config{}), metrics, clock
}

func sample(value float64, zscore *decimal.Decimal, at time.Time) models.MetricSample {
	return models.MetricSample{
		MetricName: "spread_bps",
		Venue:      "binance",
		Instrument: "BTC-USDT",
		Timestamp:  at,
		Value:      d(value),
		ZScore:     zscore,
	}
}

func TestEvaluate_WarmupSuppression(t *testing.T) {
	def := zscoreWarningDef(0, 0, 0)
	det, metrics, clock := newFixture(def, d(3.0), d(2.0))

	for i := 0; i < 10; i++ {
		det.processSample(context.Background(), sample(5.0, nil, clock.now))
		clock.now = clock.now.Add(time.Second)
	}

	if det.ActiveAlertCount() != 0 {
		t.Fatalf("expected zero alerts during warmup, got %d", det.ActiveAlertCount())
	}
	for _, skip := range metrics.skips {
		if skip != skipZScoreWarmup {
			t.Fatalf("expected every skip to be zscore_warmup, got %q", skip)
		}
	}
	if len(metrics.skips) != 10 {
		t.Fatalf("expected 10 warmup skips, got %d", len(metrics.skips))
	}
}

func TestEvaluate_FiresOnDualCondition(t *testing.T) {
	def := zscoreWarningDef(0, 0, 0)
	det, metrics, clock := newFixture(def, d(3.0), d(2.0))

	z := d(6.0)
	det.processSample(context.Background(), sample(5.0, &z, clock.now))

	if det.ActiveAlertCount() != 1 {
		t.Fatalf("expected one active alert, got %d", det.ActiveAlertCount())
	}
	if len(metrics.fired) != 1 || metrics.fired[0] != "spread_warning" {
		t.Fatalf("expected spread_warning fired once, got %+v", metrics.fired)
	}
}

func TestEvaluate_PersistenceGate(t *testing.T) {
	def := zscoreWarningDef(120*time.Second, 0, 0)
	det, _, clock := newFixture(def, d(3.0), d(2.0))
	z := d(6.0)

	for i := 0; i < 120; i++ {
		det.processSample(context.Background(), sample(5.0, &z, clock.now))
		if det.ActiveAlertCount() != 0 {
			t.Fatalf("second %d: expected no alert before persistence_seconds elapses", i)
		}
		clock.now = clock.now.Add(time.Second)
	}

	det.processSample(context.Background(), sample(5.0, &z, clock.now))
	if det.ActiveAlertCount() != 1 {
		t.Fatalf("expected alert to fire once persistence_seconds has elapsed")
	}
}

func TestEvaluate_AutoResolutionTracksPeakAndDuration(t *testing.T) {
	def := zscoreWarningDef(0, 0, 0)
	det, metrics, clock := newFixture(def, d(3.0), d(2.0))
	z := d(6.0)

	det.processSample(context.Background(), sample(5.0, &z, clock.now))
	key := models.ConditionKey{AlertType: "spread_warning", Venue: "binance", Instrument: "BTC-USDT"}
	alert := det.activeAlerts[key]
	if alert == nil {
		t.Fatalf("expected an active alert")
	}

	clock.now = clock.now.Add(10 * time.Second)
	det.processSample(context.Background(), sample(9.0, &z, clock.now))
	if !alert.PeakValue.Equal(d(9.0)) {
		t.Fatalf("expected peak to track the worse reading, got %s", alert.PeakValue)
	}

	clock.now = clock.now.Add(35 * time.Second)
	det.processSample(context.Background(), sample(1.0, &z, clock.now))

	if det.ActiveAlertCount() != 0 {
		t.Fatalf("expected the alert to resolve once the condition no longer holds")
	}
	if len(metrics.resolved) != 1 {
		t.Fatalf("expected one resolution recorded, got %d", len(metrics.resolved))
	}
	if alert.Status != models.AlertResolved {
		t.Fatalf("expected alert status resolved, got %s", alert.Status)
	}
	if alert.DurationSeconds != 45 {
		t.Fatalf("expected duration_seconds 45, got %v", alert.DurationSeconds)
	}
	if !alert.PeakValue.Equal(d(9.0)) {
		t.Fatalf("expected peak_value to remain the worst observed reading, got %s", alert.PeakValue)
	}
}

func TestEscalation_PromotesPriorityAfterEscalationSeconds(t *testing.T) {
	def := zscoreWarningDef(0, 0, 300*time.Second)
	det, metrics, clock := newFixture(def, d(3.0), d(2.0))
	z := d(6.0)

	det.processSample(context.Background(), sample(5.0, &z, clock.now))
	key := models.ConditionKey{AlertType: "spread_warning", Venue: "binance", Instrument: "BTC-USDT"}
	alert := det.activeAlerts[key]

	clock.now = clock.now.Add(301 * time.Second)
	det.scanEscalations(context.Background(), clock.now)

	if !alert.Escalated {
		t.Fatalf("expected alert to be escalated after 301s")
	}
	if alert.Priority != models.PriorityP1 {
		t.Fatalf("expected escalated priority P1, got %s", alert.Priority)
	}
	if alert.OriginalPriority == nil || *alert.OriginalPriority != models.PriorityP2 {
		t.Fatalf("expected original_priority P2 retained, got %v", alert.OriginalPriority)
	}
	if len(metrics.escalated) != 1 {
		t.Fatalf("expected exactly one escalation notification, got %d", len(metrics.escalated))
	}
}

func TestEvaluate_ThrottleSuppressesRefireAfterResolution(t *testing.T) {
	def := zscoreWarningDef(0, 60*time.Second, 0)
	det, metrics, clock := newFixture(def, d(3.0), d(2.0))
	z := d(6.0)

	det.processSample(context.Background(), sample(5.0, &z, clock.now))
	clock.now = clock.now.Add(time.Second)
	det.processSample(context.Background(), sample(1.0, &z, clock.now)) // resolves

	clock.now = clock.now.Add(5 * time.Second)
	det.processSample(context.Background(), sample(5.0, &z, clock.now)) // within throttle window

	if det.ActiveAlertCount() != 0 {
		t.Fatalf("expected throttle to suppress the refire within throttle_seconds")
	}
	throttled := 0
	for _, skip := range metrics.skips {
		if skip == skipThrottled {
			throttled++
		}
	}
	if throttled != 1 {
		t.Fatalf("expected exactly one throttled skip, got %d", throttled)
	}
}

func TestGapReset_ClearsPersistenceCellsForVenueInstrument(t *testing.T) {
	def := zscoreWarningDef(120*time.Second, 0, 0)
	det, _, clock := newFixture(def, d(3.0), d(2.0))
	z := d(6.0)

	det.processSample(context.Background(), sample(5.0, &z, clock.now))
	key := models.ConditionKey{AlertType: "spread_warning", Venue: "binance", Instrument: "BTC-USDT"}
	if _, ok := det.persistence.get(key); !ok {
		t.Fatalf("expected a persistence cell to have started")
	}

	det.processGap(&models.GapMarker{Venue: "binance", Instrument: "BTC-USDT", Reason: models.ReasonTimeout})

	if _, ok := det.persistence.get(key); ok {
		t.Fatalf("expected the persistence cell to be cleared by the gap reset")
	}
}
