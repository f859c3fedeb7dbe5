package pipeline

import (
	"context"
	"testing"
	"time"

	"MarketSentry/internal/domain/models"
)

func TestCollect_FansBooksTickersAndGapsIntoSharedChannels(t *testing.T) {
	adapter := newFakeVenueAdapter("binance")
	p := &Pipeline{
		rawBooks:   make(chan *models.OrderBookSnapshot, 4),
		rawTickers: make(chan *models.TickerSnapshot, 4),
		gapsIn:     make(chan *models.GapMarker, 4),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.collect(ctx, adapter)
		close(done)
	}()

	b := book("binance", "BTC-USDT", 100, 101, time.Now())
	adapter.books <- b
	adapter.tickers <- &models.TickerSnapshot{Venue: "binance", Instrument: "BTC-USDT"}
	adapter.gaps <- &models.GapMarker{Venue: "binance", Instrument: "BTC-USDT", Reason: models.ReasonTimeout}

	select {
	case got := <-p.rawBooks:
		if got != b {
			t.Fatalf("expected the same book forwarded")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for book to be forwarded")
	}

	select {
	case <-p.rawTickers:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ticker to be forwarded")
	}

	select {
	case <-p.gapsIn:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for gap to be forwarded")
	}

	if err := adapter.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collect did not exit after all source channels closed")
	}
}

func TestCollect_ExitsOnContextCancellation(t *testing.T) {
	adapter := newFakeVenueAdapter("binance")
	p := &Pipeline{
		rawBooks:   make(chan *models.OrderBookSnapshot),
		rawTickers: make(chan *models.TickerSnapshot),
		gapsIn:     make(chan *models.GapMarker),
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.collect(ctx, adapter)
		close(done)
	}()

	// Fill the unbuffered downstream channels' only reader slot with nothing,
	// so a send from collect would block: push a book with no consumer.
	adapter.books <- book("binance", "BTC-USDT", 100, 101, time.Now())

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collect did not exit after context cancellation while blocked on a send")
	}
}
