package venue

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

// RawLevel is one (price, quantity) pair as it arrives on the wire, still
// string-encoded. Parsing goes through decimal.NewFromString, never float,
// per spec.md §3/§9.
type RawLevel struct {
	Price    string
	Quantity string
}

// RawBookUpdate is a venue-specific book message after JSON unmarshalling
// but before normalization/validation.
type RawBookUpdate struct {
	Instrument    string
	VenueTime     time.Time
	SequenceID    int64
	Bids          []RawLevel
	Asks          []RawLevel
	DepthCaptured int
}

// RawTickerUpdate is a venue-specific ticker message before normalization.
type RawTickerUpdate struct {
	Instrument    string
	VenueTime     time.Time
	LastPrice     string
	MarkPrice     *string
	IndexPrice    *string
	Volume24h     string
	FundingRate   *string
	NextFundingAt *time.Time
}

// normalizeBook converts a RawBookUpdate into a validated OrderBookSnapshot.
// Returns an error for unparseable numbers or an invalid book (crossed,
// non-positive, unsorted) — callers must drop the message and log, never
// propagate the error upstream as a stream-killing failure.
func normalizeBook(venue string, raw RawBookUpdate, localTime time.Time, source models.Source) (*models.OrderBookSnapshot, error) {
	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return nil, fmt.Errorf("normalize bids: %w", err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return nil, fmt.Errorf("normalize asks: %w", err)
	}

	snap := &models.OrderBookSnapshot{
		Venue:         venue,
		Instrument:    raw.Instrument,
		VenueTime:     raw.VenueTime,
		LocalTime:     localTime,
		SequenceID:    raw.SequenceID,
		Bids:          bids,
		Asks:          asks,
		DepthCaptured: raw.DepthCaptured,
		Source:        source,
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("validate book: %w", err)
	}
	return snap, nil
}

func parseLevels(raw []RawLevel) ([]models.PriceLevel, error) {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", r.Price, err)
		}
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", r.Quantity, err)
		}
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// normalizeTicker converts a RawTickerUpdate into a TickerSnapshot.
func normalizeTicker(venue string, raw RawTickerUpdate, localTime time.Time, source models.Source) (*models.TickerSnapshot, error) {
	last, err := decimal.NewFromString(raw.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("parse last price %q: %w", raw.LastPrice, err)
	}
	volume := decimal.Zero
	if raw.Volume24h != "" {
		volume, err = decimal.NewFromString(raw.Volume24h)
		if err != nil {
			return nil, fmt.Errorf("parse volume %q: %w", raw.Volume24h, err)
		}
	}

	mark, err := parseOptionalDecimal(raw.MarkPrice)
	if err != nil {
		return nil, fmt.Errorf("parse mark price: %w", err)
	}
	index, err := parseOptionalDecimal(raw.IndexPrice)
	if err != nil {
		return nil, fmt.Errorf("parse index price: %w", err)
	}
	funding, err := parseOptionalDecimal(raw.FundingRate)
	if err != nil {
		return nil, fmt.Errorf("parse funding rate: %w", err)
	}

	return &models.TickerSnapshot{
		Venue:         venue,
		Instrument:    raw.Instrument,
		VenueTime:     raw.VenueTime,
		LocalTime:     localTime,
		LastPrice:     last,
		MarkPrice:     mark,
		IndexPrice:    index,
		Volume24h:     volume,
		FundingRate:   funding,
		NextFundingAt: raw.NextFundingAt,
		Source:        source,
	}, nil
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
