// Package pipeline wires venue adapters, the metrics engine, the anomaly
// detector, and the storage writers into the concurrent data flow described
// by spec.md §2: venue -> adapter -> normalized snapshot bus -> (hot-state
// writer | metrics engine) -> metrics bus -> (cold-metrics writer | anomaly
// detector) -> (alert store | alert dispatcher). Every arrow is a typed,
// bounded, in-process channel; this package owns those channels and the
// tasks that read and write them, generalizing the teacher's
// internal/usecase.TradeCollector wiring to a multi-venue, multi-stage
// pipeline.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketSentry/internal/detector"
	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/domain/repository"
	"MarketSentry/internal/metricsengine"
	"MarketSentry/pkg/logger"
)

// BasisPair names one perp/spot pair the pipeline feeds into the metrics
// engine's basis tracker.
type BasisPair struct {
	Instrument string
	PerpVenue  string
	SpotVenue  string
}

// CrossVenuePair names one same-instrument pair across two venues the
// pipeline feeds into the metrics engine's cross-venue divergence tracker.
type CrossVenuePair struct {
	Instrument string
	VenueA     string
	VenueB     string
}

// Config tunes channel capacities and timing. Defaults follow spec.md §9's
// suggested capacities (adapter->engine 1024, engine->detector 1024).
type Config struct {
	RawBookBuffer     int
	RawTickerBuffer   int
	GapBuffer         int
	SampleBuffer      int
	HotWriteBuffer    int
	ColdWriteBuffer   int
	AlertStoreBuffer  int
	AlertDispatchBuffer int
	GapResetThreshold time.Duration
	HealthInterval    time.Duration
	DrainTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.RawBookBuffer <= 0 {
		c.RawBookBuffer = 1024
	}
	if c.RawTickerBuffer <= 0 {
		c.RawTickerBuffer = 1024
	}
	if c.GapBuffer <= 0 {
		c.GapBuffer = 256
	}
	if c.SampleBuffer <= 0 {
		c.SampleBuffer = 1024
	}
	if c.HotWriteBuffer <= 0 {
		c.HotWriteBuffer = 1024
	}
	if c.ColdWriteBuffer <= 0 {
		c.ColdWriteBuffer = 1024
	}
	if c.AlertStoreBuffer <= 0 {
		c.AlertStoreBuffer = 256
	}
	if c.AlertDispatchBuffer <= 0 {
		c.AlertDispatchBuffer = 256
	}
	if c.GapResetThreshold <= 0 {
		c.GapResetThreshold = 5 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 5 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	return c
}

// Pipeline is the top-level wiring: one task per venue adapter, a single
// task owning the metrics engine (per its single-owner requirement), the
// detector's own task, and a health publisher task.
type Pipeline struct {
	cfg     Config
	log     *logger.Logger
	metrics repository.Metrics

	venues   []repository.VenueAdapter
	engine   *metricsengine.Engine
	detector *detector.Detector
	hot      repository.HotStore
	cold     repository.ColdStore
	dispatch repository.Dispatcher
	bridge   *KafkaBridge

	basisPairs      []BasisPair
	crossVenuePairs []CrossVenuePair

	rawBooks     chan *models.OrderBookSnapshot
	rawTickers   chan *models.TickerSnapshot
	gapsIn       chan *models.GapMarker
	samples      chan models.MetricSample
	detectorGaps chan *models.GapMarker

	// hotWrites and coldWrites feed the hot-store and cold-store writer
	// tasks; each sink is accessed through exactly one of those tasks.
	hotWrites  chan hotWrite
	coldWrites chan coldWrite

	// alertStoreIn and alertDispatchIn are the receive ends of the two
	// channels the detector emits its lifecycle events onto; runAlertStore
	// and runAlertDispatcher consume them as the two parallel sinks the
	// data flow names downstream of the detector.
	alertStoreIn    chan *models.Alert
	alertDispatchIn chan detector.AlertDispatch

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Pipeline from its already-constructed dependencies. bridge
// may be nil when no Kafka brokers are configured. alertStoreIn and
// alertDispatchIn must be the same channels the detector was constructed
// with as its storeOut/dispatchOut, so the detector's emitted events reach
// this pipeline's consumer tasks.
func New(
	venues []repository.VenueAdapter,
	engine *metricsengine.Engine,
	det *detector.Detector,
	hot repository.HotStore,
	cold repository.ColdStore,
	dispatch repository.Dispatcher,
	metrics repository.Metrics,
	log *logger.Logger,
	basisPairs []BasisPair,
	crossVenuePairs []CrossVenuePair,
	bridge *KafkaBridge,
	alertStoreIn chan *models.Alert,
	alertDispatchIn chan detector.AlertDispatch,
	cfg Config,
) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:             cfg,
		log:             log,
		metrics:         metrics,
		venues:          venues,
		engine:          engine,
		detector:        det,
		hot:             hot,
		cold:            cold,
		dispatch:        dispatch,
		bridge:          bridge,
		basisPairs:      basisPairs,
		crossVenuePairs: crossVenuePairs,
		rawBooks:        make(chan *models.OrderBookSnapshot, cfg.RawBookBuffer),
		rawTickers:      make(chan *models.TickerSnapshot, cfg.RawTickerBuffer),
		gapsIn:          make(chan *models.GapMarker, cfg.GapBuffer),
		samples:         make(chan models.MetricSample, cfg.SampleBuffer),
		detectorGaps:    make(chan *models.GapMarker, cfg.GapBuffer),
		hotWrites:       make(chan hotWrite, cfg.HotWriteBuffer),
		coldWrites:      make(chan coldWrite, cfg.ColdWriteBuffer),
		alertStoreIn:    alertStoreIn,
		alertDispatchIn: alertDispatchIn,
	}
}

// Start connects and subscribes every venue adapter, then launches the
// engine/detector/health tasks and one collector task per venue. It returns
// once every venue's initial subscribe has succeeded; streaming and
// reconnection continue in the background per internal/venue's supervisor.
func (p *Pipeline) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for _, v := range p.venues {
		if err := v.Connect(ctx); err != nil {
			cancel()
			return fmt.Errorf("venue %s: connect: %w", v.Venue(), err)
		}
		if err := v.Subscribe(ctx); err != nil {
			cancel()
			return fmt.Errorf("venue %s: subscribe: %w", v.Venue(), err)
		}
		if p.log != nil {
			p.log.Info("venue subscribed", logger.String("venue", v.Venue()))
		}
	}

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.runEngine(runCtx) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.detector.Run(runCtx, p.samples, p.detectorGaps) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.runHealth(runCtx) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.runHotWriter(runCtx) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.runColdWriter(runCtx) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.runAlertStore(runCtx) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.runAlertDispatcher(runCtx) }()

	for _, v := range p.venues {
		p.wg.Add(1)
		go func(v repository.VenueAdapter) { defer p.wg.Done(); p.collect(runCtx, v) }(v)
	}

	return nil
}

// Shutdown signals every venue adapter to close, then cancels the
// engine/detector/health/collector tasks and waits for them to exit, up to
// a hard deadline (cfg.DrainTimeout) per spec.md §5; tasks still running at
// the deadline are abandoned and the cold store is flushed regardless.
// Closing the venues first stops new snapshots from arriving and unblocks
// reconnection loops and in-progress reads. The shared context is cancelled
// right after, so snapshots still buffered in the pipeline channels at that
// point are not processed by the engine or detector.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p.cancel == nil {
		return nil
	}

	for _, v := range p.venues {
		if err := v.Close(); err != nil && p.log != nil {
			p.log.Warn("venue close error", logger.String("venue", v.Venue()), logger.Error(err))
		}
	}

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	p.cancel()

	deadline := time.NewTimer(p.cfg.DrainTimeout)
	defer deadline.Stop()
	select {
	case <-drained:
	case <-deadline.C:
		if p.log != nil {
			p.log.Error("pipeline shutdown drain deadline exceeded, tasks still running after cancellation")
		}
	}

	if p.cold != nil {
		flushCtx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout)
		defer cancel()
		if err := p.cold.Flush(flushCtx); err != nil && p.log != nil {
			p.log.Error("cold store final flush failed", logger.Error(err))
		}
	}
	return nil
}

// ActiveAlertCount exposes the detector's live alert count for health
// surfaces.
func (p *Pipeline) ActiveAlertCount() int { return p.detector.ActiveAlertCount() }
