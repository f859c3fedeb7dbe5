package models

import "errors"

var (
	errCrossedBook         = errors.New("orderbook: best bid >= best ask")
	errNonPositivePrice    = errors.New("orderbook: non-positive price")
	errNonPositiveQuantity = errors.New("orderbook: non-positive quantity")
	errUnsortedLevels      = errors.New("orderbook: levels not strictly monotonic")
)
