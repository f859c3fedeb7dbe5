package repository

import (
	"context"
	"time"

	"MarketSentry/internal/domain/models"
)

// VenueAdapter maintains a continuously healthy subscription to one venue
// and exposes three lazy sequences plus a health query. Close completes all
// three channels and releases the underlying connection.
type VenueAdapter interface {
	Venue() string
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Books() <-chan *models.OrderBookSnapshot
	Tickers() <-chan *models.TickerSnapshot
	Gaps() <-chan *models.GapMarker
	Health() models.HealthSnapshot
	Close() error
}

// HotStore is the overwrite-wins key-value projection described in spec
// section 4.5. Writes are best-effort from the pipeline's perspective.
type HotStore interface {
	PutOrderBook(ctx context.Context, snap *models.OrderBookSnapshot) error
	PutZScoreCurrent(ctx context.Context, venue, instrument, metric string, sample models.MetricSample) error
	PutAlert(ctx context.Context, alert *models.Alert) error
	RemoveActiveAlert(ctx context.Context, alert *models.Alert) error
	PutHealth(ctx context.Context, snap models.HealthSnapshot) error
	PutGap(ctx context.Context, gap *models.GapMarker) error
	Degraded() bool
	Close() error
}

// ColdStore is the append-only system of record described in spec section
// 4.5. WriteSample/WriteAlertEvent/WriteGap are expected to batch internally.
type ColdStore interface {
	Init(ctx context.Context) error
	WriteSample(ctx context.Context, sample models.MetricSample) error
	WriteAlertEvent(ctx context.Context, alert *models.Alert) error
	WriteGap(ctx context.Context, gap *models.GapMarker) error
	QueueDepth() int
	Flush(ctx context.Context) error
	Close() error
}

// Dispatcher is the abstract outbound notification contract from spec
// section 6: dispatch(alert, channels). The core never knows about a
// specific transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert, channels []string) error
}

// Metrics records pipeline-wide Prometheus observations.
type Metrics interface {
	RecordSnapshotProcessed(venue, instrument string)
	RecordGap(venue, reason string)
	RecordAlertFired(alertType string, priority string)
	RecordAlertResolved(alertType string)
	RecordAlertEscalated(alertType string)
	RecordEvaluationSkip(reason string)
	RecordQueueDepth(stage string, depth int)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}

// Clock abstracts time so persistence, escalation, throttling and gap
// detection are driven by an injectable monotonic clock. Wall-clock time is
// used only for audit/logging, never for these decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
