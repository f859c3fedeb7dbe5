package venue

import (
	"testing"
	"time"

	"MarketSentry/internal/domain/models"
)

func TestNormalizeBook_RejectsCrossedBook(t *testing.T) {
	raw := RawBookUpdate{
		Instrument: "BTC-USDT",
		Bids:       []RawLevel{{Price: "101", Quantity: "1"}},
		Asks:       []RawLevel{{Price: "100", Quantity: "1"}},
	}
	_, err := normalizeBook("binance", raw, time.Now(), models.SourceStream)
	if err == nil {
		t.Fatalf("expected crossed book to be rejected")
	}
}

func TestNormalizeBook_RejectsUnsortedLevels(t *testing.T) {
	raw := RawBookUpdate{
		Instrument: "BTC-USDT",
		Bids:       []RawLevel{{Price: "99", Quantity: "1"}, {Price: "100", Quantity: "1"}},
		Asks:       []RawLevel{{Price: "101", Quantity: "1"}},
	}
	_, err := normalizeBook("binance", raw, time.Now(), models.SourceStream)
	if err == nil {
		t.Fatalf("expected unsorted bid levels to be rejected")
	}
}

func TestNormalizeBook_RejectsNonNumericPrice(t *testing.T) {
	raw := RawBookUpdate{
		Instrument: "BTC-USDT",
		Bids:       []RawLevel{{Price: "not-a-number", Quantity: "1"}},
		Asks:       []RawLevel{{Price: "101", Quantity: "1"}},
	}
	_, err := normalizeBook("binance", raw, time.Now(), models.SourceStream)
	if err == nil {
		t.Fatalf("expected unparseable price to be rejected")
	}
}

func TestNormalizeBook_AcceptsValidBook(t *testing.T) {
	raw := RawBookUpdate{
		Instrument: "BTC-USDT",
		SequenceID: 42,
		Bids:       []RawLevel{{Price: "100", Quantity: "1"}},
		Asks:       []RawLevel{{Price: "101", Quantity: "1"}},
	}
	snap, err := normalizeBook("binance", raw, time.Now(), models.SourceStream)
	if err != nil {
		t.Fatalf("expected a valid book to normalize cleanly, got %v", err)
	}
	if snap.SequenceID != 42 {
		t.Fatalf("expected sequence id to round-trip, got %d", snap.SequenceID)
	}
}

func TestNormalizeTicker_AbsentOptionalFields(t *testing.T) {
	raw := RawTickerUpdate{Instrument: "BTC-USDT", LastPrice: "100.5"}
	snap, err := normalizeTicker("okx", raw, time.Now(), models.SourceStream)
	if err != nil {
		t.Fatalf("expected ticker to normalize, got %v", err)
	}
	if snap.MarkPrice != nil || snap.IndexPrice != nil {
		t.Fatalf("expected mark/index price to remain absent for a spot ticker")
	}
}
