package hotstore

import (
	"context"
	"sync/atomic"
	"time"

	"MarketSentry/internal/domain/repository"
	"MarketSentry/pkg/logger"
)

// job is one deferred write, replayed by the retry buffer after a failed
// synchronous attempt.
type job struct {
	apply func(ctx context.Context) error
}

// retryBuffer is the bounded, drop-oldest backlog for hot-store writes that
// failed synchronously. The pipeline never blocks on a hot-store write: a
// failure is buffered here and retried in the background, and the oldest
// pending write is dropped if the backlog is full.
type retryBuffer struct {
	ch       chan job
	log      *logger.Logger
	metrics  repository.Metrics
	degraded atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newRetryBuffer(size int, log *logger.Logger, metrics repository.Metrics) *retryBuffer {
	if size <= 0 {
		size = 4096
	}
	return &retryBuffer{
		ch:      make(chan job, size),
		log:     log,
		metrics: metrics,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (b *retryBuffer) start(ctx context.Context) {
	go b.run(ctx)
}

func (b *retryBuffer) run(ctx context.Context) {
	defer close(b.doneCh)
	backoff := 50 * time.Millisecond
	const maxBackoff = 2 * time.Second

	for {
		select {
		case <-b.stopCh:
			return
		case j := <-b.ch:
			if err := j.apply(ctx); err != nil {
				b.degraded.Store(true)
				if b.metrics != nil {
					b.metrics.RecordError("hot_store_retry_failed")
				}
				if backoff < maxBackoff {
					backoff *= 2
				}
				time.Sleep(backoff)
				b.enqueue(j)
				continue
			}
			backoff = 50 * time.Millisecond
			if len(b.ch) == 0 {
				b.degraded.Store(false)
			}
		}
	}
}

// enqueue buffers a failed write, dropping the oldest pending one if full.
func (b *retryBuffer) enqueue(j job) {
	b.degraded.Store(true)
	select {
	case b.ch <- j:
	default:
		select {
		case <-b.ch:
		default:
		}
		select {
		case b.ch <- j:
		default:
			if b.metrics != nil {
				b.metrics.RecordError("hot_store_buffer_drop")
			}
			if b.log != nil {
				b.log.Warn("hot store retry buffer full, dropping oldest pending write")
			}
		}
	}
}

func (b *retryBuffer) isDegraded() bool {
	return b.degraded.Load()
}

func (b *retryBuffer) stop() {
	close(b.stopCh)
	<-b.doneCh
}
