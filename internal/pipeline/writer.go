package pipeline

import (
	"context"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// hotWriteKind tags which hot-store projection a hotWrite carries.
type hotWriteKind int

const (
	hotWriteBook hotWriteKind = iota
	hotWriteSample
	hotWriteAlert
	hotWriteAlertRemove
	hotWriteGap
	hotWriteHealth
)

func (k hotWriteKind) String() string {
	switch k {
	case hotWriteBook:
		return "book"
	case hotWriteSample:
		return "sample"
	case hotWriteAlert:
		return "alert"
	case hotWriteAlertRemove:
		return "alert_remove"
	case hotWriteGap:
		return "gap"
	case hotWriteHealth:
		return "health"
	default:
		return "unknown"
	}
}

// hotWrite is one unit of work for the hot store's writer task. The hot
// store is accessed through this single task per the storage contract's
// "single writer task per sink" — every producer (the engine, the
// detector, the health publisher) sends here instead of calling the store
// directly.
type hotWrite struct {
	kind   hotWriteKind
	book   *models.OrderBookSnapshot
	sample models.MetricSample
	alert  *models.Alert
	gap    *models.GapMarker
	health models.HealthSnapshot
}

// sendHot enqueues a hot write. Hot-state loss is acceptable and
// recomputable from the next snapshot, so a saturated queue drops the
// write with a warning instead of blocking the sender.
func (p *Pipeline) sendHot(w hotWrite) {
	if p.hot == nil {
		return
	}
	select {
	case p.hotWrites <- w:
	default:
		if p.metrics != nil {
			p.metrics.RecordError("hot_store_writer_dropped")
		}
		if p.log != nil {
			p.log.Warn("hot store writer queue full, dropping write", logger.String("kind", w.kind.String()))
		}
	}
}

// runHotWriter is the hot store's single writer task.
func (p *Pipeline) runHotWriter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-p.hotWrites:
			if !ok {
				return
			}
			p.applyHotWrite(w)
		}
	}
}

func (p *Pipeline) applyHotWrite(w hotWrite) {
	ctx := context.Background()
	var err error
	switch w.kind {
	case hotWriteBook:
		err = p.hot.PutOrderBook(ctx, w.book)
	case hotWriteSample:
		err = p.hot.PutZScoreCurrent(ctx, w.sample.Venue, w.sample.Instrument, w.sample.MetricName, w.sample)
	case hotWriteAlert:
		err = p.hot.PutAlert(ctx, w.alert)
	case hotWriteAlertRemove:
		err = p.hot.RemoveActiveAlert(ctx, w.alert)
	case hotWriteGap:
		err = p.hot.PutGap(ctx, w.gap)
	case hotWriteHealth:
		err = p.hot.PutHealth(ctx, w.health)
	}
	if err != nil && p.log != nil {
		p.log.Error("hot store write failed", logger.String("kind", w.kind.String()), logger.Error(err))
	}
}

// coldWriteKind tags which cold-store table a coldWrite targets.
type coldWriteKind int

const (
	coldWriteSample coldWriteKind = iota
	coldWriteAlertEvent
	coldWriteGap
)

func (k coldWriteKind) String() string {
	switch k {
	case coldWriteSample:
		return "sample"
	case coldWriteAlertEvent:
		return "alert_event"
	case coldWriteGap:
		return "gap"
	default:
		return "unknown"
	}
}

// coldWrite is one unit of work for the cold store's writer task.
type coldWrite struct {
	kind   coldWriteKind
	sample models.MetricSample
	alert  *models.Alert
	gap    *models.GapMarker
}

// sendCold enqueues a cold write. Unlike sendHot this applies real
// backpressure: cold-store loss is unacceptable, so a saturated queue
// blocks the sender until the writer task drains it or ctx is cancelled.
// That block propagates upstream through the engine/detector tasks to the
// bounded adapter channels, and from there to the venue adapter itself.
func (p *Pipeline) sendCold(ctx context.Context, w coldWrite) {
	if p.cold == nil {
		return
	}
	select {
	case p.coldWrites <- w:
	case <-ctx.Done():
	}
}

// runColdWriter is the cold store's single writer task.
func (p *Pipeline) runColdWriter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-p.coldWrites:
			if !ok {
				return
			}
			p.applyColdWrite(ctx, w)
		}
	}
}

func (p *Pipeline) applyColdWrite(ctx context.Context, w coldWrite) {
	var err error
	switch w.kind {
	case coldWriteSample:
		err = p.cold.WriteSample(ctx, w.sample)
	case coldWriteAlertEvent:
		err = p.cold.WriteAlertEvent(ctx, w.alert)
	case coldWriteGap:
		err = p.cold.WriteGap(ctx, w.gap)
	}
	if err != nil && p.log != nil {
		p.log.Error("cold store write failed", logger.String("kind", w.kind.String()), logger.Error(err))
	}
}

// runAlertStore is the "alert store" consumer task the data flow names as
// one of the two parallel sinks downstream of the anomaly detector. It
// forwards each finalized alert into the hot and cold writer tasks, in
// parallel with runAlertDispatcher reading the same detector's dispatch
// output, rather than the detector persisting inline on its own goroutine.
func (p *Pipeline) runAlertStore(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-p.alertStoreIn:
			if !ok {
				return
			}
			p.sendHot(hotWrite{kind: hotWriteAlert, alert: alert})
			if alert.Status == models.AlertResolved {
				p.sendHot(hotWrite{kind: hotWriteAlertRemove, alert: alert})
			}
			p.sendCold(ctx, coldWrite{kind: coldWriteAlertEvent, alert: alert})
		}
	}
}

// runAlertDispatcher is the "alert dispatcher" consumer task: the other of
// the two parallel sinks downstream of the detector. It owns the outbound
// notification call so a slow notification channel never blocks alert
// storage, and vice versa.
func (p *Pipeline) runAlertDispatcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ad, ok := <-p.alertDispatchIn:
			if !ok {
				return
			}
			if p.dispatch == nil {
				continue
			}
			if err := p.dispatch.Dispatch(ctx, ad.Alert, ad.Channels); err != nil && p.log != nil {
				p.log.Error("alert dispatch failed", logger.Error(err), logger.String("alert_id", ad.Alert.ID))
			}
		}
	}
}
