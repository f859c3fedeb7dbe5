package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketSentry/internal/detector"
	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/domain/repository"
	"MarketSentry/internal/metricsengine"
	"MarketSentry/internal/zscore"
)

type fakeVenueAdapter struct {
	venue string

	books   chan *models.OrderBookSnapshot
	tickers chan *models.TickerSnapshot
	gaps    chan *models.GapMarker

	connectErr   error
	subscribeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeVenueAdapter(venue string) *fakeVenueAdapter {
	return &fakeVenueAdapter{
		venue:   venue,
		books:   make(chan *models.OrderBookSnapshot, 4),
		tickers: make(chan *models.TickerSnapshot, 4),
		gaps:    make(chan *models.GapMarker, 4),
		closed:  make(chan struct{}),
	}
}

func (f *fakeVenueAdapter) Venue() string                             { return f.venue }
func (f *fakeVenueAdapter) Connect(ctx context.Context) error         { return f.connectErr }
func (f *fakeVenueAdapter) Subscribe(ctx context.Context) error       { return f.subscribeErr }
func (f *fakeVenueAdapter) Books() <-chan *models.OrderBookSnapshot   { return f.books }
func (f *fakeVenueAdapter) Tickers() <-chan *models.TickerSnapshot    { return f.tickers }
func (f *fakeVenueAdapter) Gaps() <-chan *models.GapMarker            { return f.gaps }
func (f *fakeVenueAdapter) Health() models.HealthSnapshot {
	return models.HealthSnapshot{Venue: f.venue, Status: models.StatusStreaming}
}
func (f *fakeVenueAdapter) Close() error {
	f.closeOnce.Do(func() {
		close(f.books)
		close(f.tickers)
		close(f.gaps)
		close(f.closed)
	})
	return nil
}

func newLifecyclePipeline(t *testing.T, venues ...*fakeVenueAdapter) (*Pipeline, *fakeHotStore, *fakeColdStore) {
	t.Helper()
	zsc := zscore.New(zscore.DefaultConfig(), nil)
	engine := metricsengine.New(zsc, nil)
	registry := detector.NewRegistry(nil, nil)
	alertStore := make(chan *models.Alert, 16)
	alertDispatch := make(chan detector.AlertDispatch, 16)
	det := detector.New(registry, fakeClock{now: time.Now()}, nil, &fakeMetrics{}, alertStore, alertDispatch, detector.Config{})
	hot := &fakeHotStore{}
	cold := &fakeColdStore{}

	adapters := make([]repository.VenueAdapter, len(venues))
	for i, v := range venues {
		adapters[i] = v
	}

	p := New(adapters, engine, det, hot, cold, nil, &fakeMetrics{}, nil, nil, nil, nil,
		alertStore, alertDispatch,
		Config{HealthInterval: 10 * time.Millisecond, DrainTimeout: time.Second})
	return p, hot, cold
}

func TestPipeline_StartAndShutdown_DrainsCleanly(t *testing.T) {
	adapter := newFakeVenueAdapter("binance")
	p, hot, cold := newLifecyclePipeline(t, adapter)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	adapter.books <- book("binance", "BTC-USDT", 100, 101, time.Now())

	deadline := time.After(2 * time.Second)
	for {
		hot.mu.Lock()
		got := hot.books
		hot.mu.Unlock()
		if got >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for book to reach the hot store")
		case <-time.After(time.Millisecond):
		}
	}

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- p.Shutdown(context.Background()) }()

	select {
	case err := <-shutdownDone:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not complete well within the drain timeout")
	}

	if !cold.flushed {
		t.Fatal("expected the cold store to be flushed on shutdown")
	}
}

func TestPipeline_ShutdownIsNoOpBeforeStart(t *testing.T) {
	p, _, _ := newLifecyclePipeline(t)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected a nil error shutting down a pipeline that never started, got %v", err)
	}
}
