package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/detector"
	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/metricsengine"
	"MarketSentry/internal/zscore"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeMetrics struct {
	mu        sync.Mutex
	processed int
	gaps      int
}

func (m *fakeMetrics) RecordSnapshotProcessed(string, string) {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordGap(string, string) {
	m.mu.Lock()
	m.gaps++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordAlertFired(string, string)    {}
func (m *fakeMetrics) RecordAlertResolved(string)         {}
func (m *fakeMetrics) RecordAlertEscalated(string)        {}
func (m *fakeMetrics) RecordEvaluationSkip(string)        {}
func (m *fakeMetrics) RecordQueueDepth(string, int)       {}
func (m *fakeMetrics) RecordLatency(string, float64)      {}
func (m *fakeMetrics) RecordError(string)                 {}

type fakeHotStore struct {
	mu     sync.Mutex
	books  int
	gaps   []*models.GapMarker
	health []models.HealthSnapshot
}

func (s *fakeHotStore) PutOrderBook(ctx context.Context, snap *models.OrderBookSnapshot) error {
	s.mu.Lock()
	s.books++
	s.mu.Unlock()
	return nil
}
func (s *fakeHotStore) PutZScoreCurrent(ctx context.Context, venue, instrument, metric string, sample models.MetricSample) error {
	return nil
}
func (s *fakeHotStore) PutAlert(ctx context.Context, alert *models.Alert) error        { return nil }
func (s *fakeHotStore) RemoveActiveAlert(ctx context.Context, alert *models.Alert) error { return nil }
func (s *fakeHotStore) PutHealth(ctx context.Context, snap models.HealthSnapshot) error {
	s.mu.Lock()
	s.health = append(s.health, snap)
	s.mu.Unlock()
	return nil
}
func (s *fakeHotStore) PutGap(ctx context.Context, gap *models.GapMarker) error {
	s.mu.Lock()
	s.gaps = append(s.gaps, gap)
	s.mu.Unlock()
	return nil
}
func (s *fakeHotStore) Degraded() bool { return false }
func (s *fakeHotStore) Close() error   { return nil }

type fakeColdStore struct {
	mu      sync.Mutex
	samples int
	gaps    int
	flushed bool
}

func (s *fakeColdStore) Init(ctx context.Context) error { return nil }
func (s *fakeColdStore) WriteSample(ctx context.Context, sample models.MetricSample) error {
	s.mu.Lock()
	s.samples++
	s.mu.Unlock()
	return nil
}
func (s *fakeColdStore) WriteAlertEvent(ctx context.Context, alert *models.Alert) error { return nil }
func (s *fakeColdStore) WriteGap(ctx context.Context, gap *models.GapMarker) error {
	s.mu.Lock()
	s.gaps++
	s.mu.Unlock()
	return nil
}
func (s *fakeColdStore) QueueDepth() int { return 0 }
func (s *fakeColdStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.flushed = true
	s.mu.Unlock()
	return nil
}
func (s *fakeColdStore) Close() error { return nil }

func level(price, qty float64) models.PriceLevel {
	return models.PriceLevel{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(qty)}
}

func newTestPipeline(t *testing.T, basisPairs []BasisPair, crossVenuePairs []CrossVenuePair) (*Pipeline, *fakeHotStore, *fakeColdStore, *fakeMetrics) {
	t.Helper()
	zsc := zscore.New(zscore.DefaultConfig(), nil)
	engine := metricsengine.New(zsc, nil)
	registry := detector.NewRegistry(nil, nil)
	alertStore := make(chan *models.Alert, 16)
	alertDispatch := make(chan detector.AlertDispatch, 16)
	det := detector.New(registry, fakeClock{now: time.Now()}, nil, &fakeMetrics{}, alertStore, alertDispatch, detector.Config{})
	hot := &fakeHotStore{}
	cold := &fakeColdStore{}
	metrics := &fakeMetrics{}

	p := New(nil, engine, det, hot, cold, nil, metrics, nil, basisPairs, crossVenuePairs, nil,
		alertStore, alertDispatch, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.runHotWriter(ctx)
	go p.runColdWriter(ctx)

	return p, hot, cold, metrics
}

// waitFor polls cond until it reports true or the timeout elapses, for
// assertions against state the hot/cold writer tasks update asynchronously.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		case <-time.After(time.Millisecond):
		}
	}
}

func book(venue, instrument string, bid, ask float64, at time.Time) *models.OrderBookSnapshot {
	return &models.OrderBookSnapshot{
		Venue:      venue,
		Instrument: instrument,
		LocalTime:  at,
		Bids:       []models.PriceLevel{level(bid, 1)},
		Asks:       []models.PriceLevel{level(ask, 1)},
	}
}

func TestHandleBook_WritesHotStoreAndRecordsMetric(t *testing.T) {
	p, hot, _, metrics := newTestPipeline(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for range p.samples {
		}
	}()

	p.handleBook(ctx, book("binance", "BTC-USDT", 100, 101, time.Now()))

	waitFor(t, time.Second, func() bool {
		hot.mu.Lock()
		defer hot.mu.Unlock()
		return hot.books == 1
	})
	if metrics.processed != 1 {
		t.Fatalf("expected 1 snapshot-processed record, got %d", metrics.processed)
	}
}

func TestHandleBook_BasisPairUpdatesOnBothLegs(t *testing.T) {
	pairs := []BasisPair{{Instrument: "BTC-USDT", PerpVenue: "binance", SpotVenue: "okx"}}
	p, _, _, _ := newTestPipeline(t, pairs, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var metricNames []string
	go func() {
		for s := range p.samples {
			mu.Lock()
			metricNames = append(metricNames, s.MetricName)
			mu.Unlock()
		}
	}()

	now := time.Now()
	p.handleBook(ctx, book("binance", "BTC-USDT", 100, 101, now))
	p.handleBook(ctx, book("okx", "BTC-USDT", 99, 100, now.Add(time.Second)))

	found := false
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, name := range metricNames {
			if name == models.MetricBasisBps {
				found = true
			}
		}
		return found
	})
	if !found {
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("expected a basis_bps sample once both legs have reported, got %v", metricNames)
	}
}

func TestHandleBook_CrossVenuePairIgnoredForUnmatchedInstrument(t *testing.T) {
	pairs := []CrossVenuePair{{Instrument: "ETH-USDT", VenueA: "binance", VenueB: "okx"}}
	p, hot, _, _ := newTestPipeline(t, nil, pairs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for range p.samples {
		}
	}()

	p.handleBook(ctx, book("binance", "BTC-USDT", 100, 101, time.Now()))

	waitFor(t, time.Second, func() bool {
		hot.mu.Lock()
		defer hot.mu.Unlock()
		return hot.books == 1
	})
}

func TestHandleGap_StoresAndCountsShortAndLongGaps(t *testing.T) {
	p, hot, cold, metrics := newTestPipeline(t, nil, nil)
	p.cfg.GapResetThreshold = 5 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for range p.detectorGaps {
		}
	}()

	shortGap := &models.GapMarker{Venue: "binance", Instrument: "BTC-USDT", Duration: time.Second, Reason: models.ReasonTimeout}
	p.handleGap(ctx, shortGap)

	longGap := &models.GapMarker{Venue: "binance", Instrument: "BTC-USDT", Duration: 10 * time.Second, Reason: models.ReasonDisconnect}
	p.handleGap(ctx, longGap)

	waitFor(t, time.Second, func() bool {
		hot.mu.Lock()
		defer hot.mu.Unlock()
		return len(hot.gaps) == 2
	})
	waitFor(t, time.Second, func() bool {
		cold.mu.Lock()
		defer cold.mu.Unlock()
		return cold.gaps == 2
	})
	if metrics.gaps != 2 {
		t.Fatalf("expected both gaps recorded, got %d", metrics.gaps)
	}
}

func TestHandleGap_ForwardsToDetectorChannel(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gap := &models.GapMarker{Venue: "binance", Instrument: "BTC-USDT", Duration: time.Second, Reason: models.ReasonTimeout}

	done := make(chan *models.GapMarker, 1)
	go func() {
		done <- <-p.detectorGaps
	}()

	p.handleGap(ctx, gap)

	select {
	case got := <-done:
		if got != gap {
			t.Fatalf("expected the same gap forwarded to the detector channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for gap to reach the detector channel")
	}
}

func TestPublishSamples_BlocksUntilContextCancelledWhenDetectorIdle(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, nil, nil)
	p.samples = make(chan models.MetricSample) // unbuffered: forces the block path
	ctx, cancel := context.WithCancel(context.Background())

	sample := models.MetricSample{MetricName: models.MetricSpreadBps, Venue: "binance", Instrument: "BTC-USDT", Timestamp: time.Now(), Value: decimal.NewFromInt(1)}

	finished := make(chan struct{})
	go func() {
		p.publishSamples(ctx, []models.MetricSample{sample})
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("publishSamples returned before the sample was consumed or the context was cancelled")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publishSamples did not return after context cancellation")
	}
}
