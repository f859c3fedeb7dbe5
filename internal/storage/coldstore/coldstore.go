// Package coldstore implements the append-only system of record described
// in spec section 4.5: batched ClickHouse writes for metric samples, alert
// lifecycle events, and gap markers. Unlike the hot store, a cold-store
// write failure is unacceptable data loss, not a best-effort projection —
// batches that exhaust their retry budget are handed to a durable fallback
// queue instead of being dropped.
package coldstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/domain/repository"
	"MarketSentry/pkg/clickhouse"
	"MarketSentry/pkg/logger"
)

// Config controls batching and retry behavior.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	RetryMax      int
	RetryBackoff  time.Duration

	// MaxQueueDepth bounds the total number of rows (samples + alert events
	// + gaps) buffered in memory awaiting flush. Once reached, Write* calls
	// block until a flush frees capacity or the caller's context is
	// cancelled: cold-store loss is unacceptable, so a saturated queue
	// applies backpressure rather than growing without bound.
	MaxQueueDepth int
}

// Store implements repository.ColdStore against ClickHouse.
type Store struct {
	client   *clickhouse.Client
	cfg      Config
	log      *logger.Logger
	metrics  repository.Metrics
	fallback *fallbackQueue

	mu      sync.Mutex
	samples []models.MetricSample
	alerts  []*models.Alert
	gaps    []*models.GapMarker

	// tokens bounds total queued rows to cfg.MaxQueueDepth. Each Write*
	// call acquires one token before appending and a flush releases one
	// token per row it removes from the in-memory buffer.
	tokens chan struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a cold store. fallback may be nil, in which case batches that
// exhaust their retry budget are logged and dropped rather than queued —
// callers should always wire a fallback queue in production.
func New(client *clickhouse.Client, cfg Config, fallback *fallbackQueue, log *logger.Logger, metrics repository.Metrics) *Store {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 30
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 10000
	}
	tokens := make(chan struct{}, cfg.MaxQueueDepth)
	for i := 0; i < cfg.MaxQueueDepth; i++ {
		tokens <- struct{}{}
	}
	return &Store{
		client:   client,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		fallback: fallback,
		tokens:   tokens,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// acquire blocks until a queue slot is free or ctx is cancelled. This is the
// stall half of spec's "backpressure, then stall" cold-store contract.
func (s *Store) acquire(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release returns n queue slots after a flush removes n rows from memory.
func (s *Store) release(n int) {
	for i := 0; i < n; i++ {
		select {
		case s.tokens <- struct{}{}:
		default:
			return
		}
	}
}

// Init implements repository.ColdStore.
func (s *Store) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, schemaStatements); err != nil {
		return fmt.Errorf("init cold store schema: %w", err)
	}
	go s.flushLoop()
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Flush(context.Background()); err != nil && s.log != nil {
				s.log.Error("cold store periodic flush failed", logger.Error(err))
			}
		}
	}
}

// WriteSample implements repository.ColdStore. It blocks once the queue is
// at MaxQueueDepth, applying backpressure to the caller until a flush frees
// capacity or ctx is cancelled.
func (s *Store) WriteSample(ctx context.Context, sample models.MetricSample) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	full := len(s.samples) >= s.cfg.BatchSize
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordQueueDepth("coldstore_samples", s.QueueDepth())
	}
	if full {
		go func() {
			if err := s.flushSamples(context.Background()); err != nil && s.log != nil {
				s.log.Error("cold store sample flush failed", logger.Error(err))
			}
		}()
	}
	return nil
}

// WriteAlertEvent implements repository.ColdStore. See WriteSample for the
// backpressure contract.
func (s *Store) WriteAlertEvent(ctx context.Context, alert *models.Alert) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	full := len(s.alerts) >= s.cfg.BatchSize
	s.mu.Unlock()
	if full {
		go func() {
			if err := s.flushAlerts(context.Background()); err != nil && s.log != nil {
				s.log.Error("cold store alert flush failed", logger.Error(err))
			}
		}()
	}
	return nil
}

// WriteGap implements repository.ColdStore. See WriteSample for the
// backpressure contract.
func (s *Store) WriteGap(ctx context.Context, gap *models.GapMarker) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.gaps = append(s.gaps, gap)
	full := len(s.gaps) >= s.cfg.BatchSize
	s.mu.Unlock()
	if full {
		go func() {
			if err := s.flushGaps(context.Background()); err != nil && s.log != nil {
				s.log.Error("cold store gap flush failed", logger.Error(err))
			}
		}()
	}
	return nil
}

// QueueDepth implements repository.ColdStore: the number of rows buffered
// in memory, not yet durably written.
func (s *Store) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples) + len(s.alerts) + len(s.gaps)
}

// Flush implements repository.ColdStore, draining every buffer.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.flushSamples(ctx); err != nil {
		return err
	}
	if err := s.flushAlerts(ctx); err != nil {
		return err
	}
	return s.flushGaps(ctx)
}

// Close implements repository.ColdStore.
func (s *Store) Close() error {
	close(s.stopCh)
	<-s.doneCh
	_ = s.Flush(context.Background())
	return s.client.Close()
}

var _ repository.ColdStore = (*Store)(nil)
