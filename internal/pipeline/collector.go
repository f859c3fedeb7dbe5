package pipeline

import (
	"context"

	"MarketSentry/internal/domain/repository"
)

// collect pumps one venue adapter's three output channels into the
// pipeline's shared raw channels. It applies backpressure rather than
// dropping: a full rawBooks/rawTickers/gapsIn channel blocks the send,
// which in turn blocks the adapter's own internal channels and ultimately
// its read loop, so a stalled engine stalls ingestion instead of silently
// losing data.
func (p *Pipeline) collect(ctx context.Context, v repository.VenueAdapter) {
	books := v.Books()
	tickers := v.Tickers()
	gaps := v.Gaps()

	for books != nil || tickers != nil || gaps != nil {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-books:
			if !ok {
				books = nil
				continue
			}
			select {
			case p.rawBooks <- b:
			case <-ctx.Done():
				return
			}

		case t, ok := <-tickers:
			if !ok {
				tickers = nil
				continue
			}
			select {
			case p.rawTickers <- t:
			case <-ctx.Done():
				return
			}

		case g, ok := <-gaps:
			if !ok {
				gaps = nil
				continue
			}
			select {
			case p.gapsIn <- g:
			case <-ctx.Done():
				return
			}
		}
	}
}
