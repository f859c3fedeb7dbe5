package pipeline

import (
	"context"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

// runEngine is the metrics engine's single owning task. The engine is not
// safe for concurrent use and basis/cross-venue pairs span multiple venues,
// so every book, ticker, and gap that can mutate its state funnels through
// this one goroutine.
func (p *Pipeline) runEngine(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-p.rawBooks:
			if !ok {
				return
			}
			p.handleBook(ctx, b)

		case t, ok := <-p.rawTickers:
			if !ok {
				continue
			}
			p.handleTicker(ctx, t)

		case g, ok := <-p.gapsIn:
			if !ok {
				continue
			}
			p.handleGap(ctx, g)
		}
	}
}

func (p *Pipeline) handleBook(ctx context.Context, snap *models.OrderBookSnapshot) {
	if p.metrics != nil {
		p.metrics.RecordSnapshotProcessed(snap.Venue, snap.Instrument)
	}
	p.sendHot(hotWrite{kind: hotWriteBook, book: snap})

	p.publishSamples(ctx, p.engine.ProcessBook(snap))

	bestBid, hasBid := snap.BestBid()
	bestAsk, hasAsk := snap.BestAsk()
	if !hasBid || !hasAsk {
		return
	}
	mid := bestBid.Price.Add(bestAsk.Price).Div(decimal.NewFromInt(2))

	for _, pair := range p.basisPairs {
		if pair.Instrument != snap.Instrument {
			continue
		}
		switch snap.Venue {
		case pair.PerpVenue:
			p.publishSamples(ctx, p.engine.UpdateBasisPerp(pair.Instrument, pair.PerpVenue, pair.SpotVenue, mid, snap.LocalTime))
		case pair.SpotVenue:
			p.publishSamples(ctx, p.engine.UpdateBasisSpot(pair.Instrument, pair.PerpVenue, pair.SpotVenue, mid, snap.LocalTime))
		}
	}
	for _, pair := range p.crossVenuePairs {
		if pair.Instrument != snap.Instrument {
			continue
		}
		switch snap.Venue {
		case pair.VenueA:
			p.publishSamples(ctx, p.engine.UpdateCrossVenue(pair.Instrument, pair.VenueA, pair.VenueB, true, mid, snap.LocalTime))
		case pair.VenueB:
			p.publishSamples(ctx, p.engine.UpdateCrossVenue(pair.Instrument, pair.VenueA, pair.VenueB, false, mid, snap.LocalTime))
		}
	}
}

func (p *Pipeline) handleTicker(ctx context.Context, t *models.TickerSnapshot) {
	if p.metrics != nil {
		p.metrics.RecordSnapshotProcessed(t.Venue, t.Instrument)
	}
	p.publishSamples(ctx, p.engine.ProcessTicker(t))
}

// publishSamples enqueues each derived sample onto the hot and cold writer
// tasks and forwards it to the detector. The hot write may be dropped under
// saturation; the cold write and the detector-bound send both apply
// backpressure, since a skipped cold write is unacceptable loss and a
// skipped sample is a skipped alert evaluation.
func (p *Pipeline) publishSamples(ctx context.Context, samples []models.MetricSample) {
	bctx := context.Background()
	for _, s := range samples {
		p.sendHot(hotWrite{kind: hotWriteSample, sample: s})
		p.sendCold(ctx, coldWrite{kind: coldWriteSample, sample: s})
		if p.bridge != nil {
			p.bridge.PublishSample(bctx, s)
		}

		select {
		case p.samples <- s:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) handleGap(ctx context.Context, gap *models.GapMarker) {
	if p.metrics != nil {
		p.metrics.RecordGap(gap.Venue, string(gap.Reason))
	}
	p.sendHot(hotWrite{kind: hotWriteGap, gap: gap})
	p.sendCold(ctx, coldWrite{kind: coldWriteGap, gap: gap})
	if gap.Duration >= p.cfg.GapResetThreshold {
		p.engine.Reset(gap.Venue, gap.Instrument, string(gap.Reason))
	}

	select {
	case p.detectorGaps <- gap:
	case <-ctx.Done():
	}
}
