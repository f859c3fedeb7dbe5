package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single (price, quantity) point on one side of a book.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Source distinguishes data that arrived over the streaming connection from
// data backfilled by the REST fallback poller.
type Source int

const (
	SourceStream Source = iota
	SourceREST
)

func (s Source) String() string {
	if s == SourceREST {
		return "rest"
	}
	return "stream"
}

// OrderBookSnapshot is the normalized, per-venue, per-instrument book state
// that leaves the venue adapter layer. Bids are ordered highest-first, asks
// lowest-first.
type OrderBookSnapshot struct {
	Venue         string
	Instrument    string
	VenueTime     time.Time
	LocalTime     time.Time
	SequenceID    int64
	Bids          []PriceLevel
	Asks          []PriceLevel
	DepthCaptured int
	Source        Source
}

// BestBid returns the highest bid level, or false if the book has no bids.
func (s *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level, or false if the book has no asks.
func (s *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// Validate enforces the invariants from the data model: positive prices and
// quantities, strictly monotonic levels on each side, and a non-crossed book.
// A crossed or otherwise invalid book must be rejected and never published.
func (s *OrderBookSnapshot) Validate() error {
	if err := validateLevels(s.Bids, true); err != nil {
		return err
	}
	if err := validateLevels(s.Asks, false); err != nil {
		return err
	}
	bestBid, hasBid := s.BestBid()
	bestAsk, hasAsk := s.BestAsk()
	if hasBid && hasAsk && bestBid.Price.GreaterThanOrEqual(bestAsk.Price) {
		return errCrossedBook
	}
	return nil
}

// validateLevels checks positivity and strict monotonicity. descending is
// true for bids (strictly decreasing price), false for asks (strictly
// increasing price).
func validateLevels(levels []PriceLevel, descending bool) error {
	for i, lvl := range levels {
		if lvl.Price.Sign() <= 0 {
			return errNonPositivePrice
		}
		if lvl.Quantity.Sign() <= 0 {
			return errNonPositiveQuantity
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].Price
		if descending {
			if lvl.Price.GreaterThanOrEqual(prev) {
				return errUnsortedLevels
			}
		} else {
			if lvl.Price.LessThanOrEqual(prev) {
				return errUnsortedLevels
			}
		}
	}
	return nil
}

// TickerSnapshot carries last/mark/index price and funding state for an
// instrument. MarkPrice and IndexPrice are nil for spot instruments.
type TickerSnapshot struct {
	Venue              string
	Instrument         string
	VenueTime          time.Time
	LocalTime          time.Time
	LastPrice          decimal.Decimal
	MarkPrice          *decimal.Decimal
	IndexPrice         *decimal.Decimal
	Volume24h          decimal.Decimal
	FundingRate        *decimal.Decimal
	NextFundingAt      *time.Time
	Source             Source
}
