package coldstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketSentry/internal/domain/models"
)

func TestChunkedInsert_SplitsIntoBoundedChunks(t *testing.T) {
	var calls [][2]int
	err := chunkedInsert(5000, func(start, end int) error {
		calls = append(calls, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("chunkedInsert: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 chunks for 5000 rows at chunk size %d, got %d", insertChunkSize, len(calls))
	}
	if calls[len(calls)-1][1] != 5000 {
		t.Fatalf("expected final chunk to end at 5000, got %d", calls[len(calls)-1][1])
	}
}

func TestChunkedInsert_StopsOnFirstError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := chunkedInsert(insertChunkSize*3, func(start, end int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected chunking to stop after the failing chunk, got %d calls", calls)
	}
}

func TestStore_WithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	s := &Store{cfg: Config{RetryMax: 3, RetryBackoff: time.Millisecond}}
	attempts := 0
	err := s.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected retry to eventually succeed, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestStore_WithRetry_ExhaustsBudget(t *testing.T) {
	s := &Store{cfg: Config{RetryMax: 2, RetryBackoff: time.Millisecond}}
	attempts := 0
	err := s.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatalf("expected withRetry to return an error once the budget is exhausted")
	}
	if attempts != 3 {
		t.Fatalf("expected RetryMax+1 attempts, got %d", attempts)
	}
}

func TestEncodeSamplesFallback_PreservesZScorePresence(t *testing.T) {
	z := models.MetricSample{MetricName: "spread_bps", Venue: "binance", Instrument: "BTC-USDT", Timestamp: time.Now()}
	out := encodeSamplesFallback([]models.MetricSample{z})
	if len(out.Samples) != 1 {
		t.Fatalf("expected one encoded sample, got %d", len(out.Samples))
	}
	if out.Samples[0].HasZScore {
		t.Fatalf("expected HasZScore false when ZScore is nil")
	}
}
