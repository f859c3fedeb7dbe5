// Package hotstore implements the overwrite-wins key-value projection
// described in spec section 4.5: latest order-book snapshots, current
// z-scores, active alerts, per-venue health and recent gap markers, backed
// by Redis. Writes are best-effort from the pipeline's perspective — a
// synchronous failure is handed to a bounded retry buffer instead of
// propagating upstream.
package hotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/domain/repository"
	"MarketSentry/pkg/cache"
	"MarketSentry/pkg/logger"
)

// Store implements repository.HotStore against Redis.
type Store struct {
	client  *redis.Client
	prefix  string
	log     *logger.Logger
	metrics repository.Metrics
	buffer  *retryBuffer
}

// NewStore builds a hot store on top of an already-connected RedisCache,
// reusing its dialed client rather than opening a second connection.
func NewStore(rc *cache.RedisCache, keyPrefix string, bufferSize int, log *logger.Logger, metrics repository.Metrics) *Store {
	s := &Store{
		client:  rc.Client(),
		prefix:  keyPrefix,
		log:     log,
		metrics: metrics,
		buffer:  newRetryBuffer(bufferSize, log, metrics),
	}
	s.buffer.start(context.Background())
	return s
}

func (s *Store) key(logical string) string {
	return fmt.Sprintf("%s:%s", s.prefix, logical)
}

// Degraded reports whether the retry buffer currently holds unflushed
// writes, surfaced by the health aggregator as a hot_store_degraded signal.
func (s *Store) Degraded() bool {
	return s.buffer.isDegraded()
}

// Close stops the retry buffer and closes the underlying Redis connection.
func (s *Store) Close() error {
	s.buffer.stop()
	return s.client.Close()
}

func (s *Store) publish(ctx context.Context, kind, venue, instrument string) {
	payload, err := json.Marshal(map[string]string{"kind": kind, "venue": venue, "instrument": instrument})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.key(updatesChannel), payload).Err(); err != nil && s.log != nil {
		s.log.Warn("hot store publish failed", logger.Error(err), logger.String("kind", kind))
	}
}

// PutOrderBook implements repository.HotStore.
func (s *Store) PutOrderBook(ctx context.Context, snap *models.OrderBookSnapshot) error {
	fields, err := encodeBook(snap)
	if err != nil {
		return fmt.Errorf("encode order book: %w", err)
	}
	apply := func(ctx context.Context) error {
		return s.client.HSet(ctx, s.key(bookKey(snap.Venue, snap.Instrument)), fields).Err()
	}
	if err := apply(ctx); err != nil {
		s.buffer.enqueue(job{apply: apply})
		return nil
	}
	s.publish(ctx, "orderbook", snap.Venue, snap.Instrument)
	return nil
}

// PutZScoreCurrent implements repository.HotStore. It updates the latest
// z-score projection and appends to the bounded rolling-buffer list for the
// same metric in one call.
func (s *Store) PutZScoreCurrent(ctx context.Context, venue, instrument, metric string, sample models.MetricSample) error {
	current, err := encodeMetricSample(sample)
	if err != nil {
		return fmt.Errorf("encode metric sample: %w", err)
	}
	seriesEntry, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode metric series entry: %w", err)
	}

	currentKey := s.key(zscoreCurrentKey(venue, instrument))
	seriesKey := s.key(zscoreSeriesKey(venue, instrument, metric))

	apply := func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, currentKey, metric, string(seriesEntry))
		pipe.LPush(ctx, seriesKey, seriesEntry)
		pipe.LTrim(ctx, seriesKey, 0, zscoreSeriesCap-1)
		_, err := pipe.Exec(ctx)
		return err
	}
	if err := apply(ctx); err != nil {
		s.buffer.enqueue(job{apply: apply})
		return nil
	}
	s.publish(ctx, "zscore", venue, instrument)
	return nil
}

// PutAlert implements repository.HotStore. It writes the active-alert
// record, both reverse indexes, and refreshes the dedup marker.
func (s *Store) PutAlert(ctx context.Context, alert *models.Alert) error {
	fields, err := encodeAlert(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	activeKey := s.key(alertActiveKey(alert.ID))
	byInstrumentKey := s.key(alertsByInstrumentKey(alert.Instrument))
	byPriorityKey := s.key(alertsByPriorityKey(string(alert.Priority)))
	dedupKey := s.key(alertDedupKey(alert.AlertType, alert.Venue, alert.Instrument))

	apply := func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, activeKey, fields)
		pipe.SAdd(ctx, byInstrumentKey, alert.ID)
		pipe.SAdd(ctx, byPriorityKey, alert.ID)
		pipe.Set(ctx, dedupKey, alert.ID, dedupTTL)
		_, err := pipe.Exec(ctx)
		return err
	}
	if err := apply(ctx); err != nil {
		s.buffer.enqueue(job{apply: apply})
		return nil
	}
	s.publish(ctx, "alert", alert.Venue, alert.Instrument)
	return nil
}

// RemoveActiveAlert implements repository.HotStore, undoing PutAlert's
// indexing once an alert resolves.
func (s *Store) RemoveActiveAlert(ctx context.Context, alert *models.Alert) error {
	activeKey := s.key(alertActiveKey(alert.ID))
	byInstrumentKey := s.key(alertsByInstrumentKey(alert.Instrument))
	byPriorityKey := s.key(alertsByPriorityKey(string(alert.Priority)))

	apply := func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, activeKey)
		pipe.SRem(ctx, byInstrumentKey, alert.ID)
		pipe.SRem(ctx, byPriorityKey, alert.ID)
		_, err := pipe.Exec(ctx)
		return err
	}
	if err := apply(ctx); err != nil {
		s.buffer.enqueue(job{apply: apply})
		return nil
	}
	s.publish(ctx, "alert_resolved", alert.Venue, alert.Instrument)
	return nil
}

// PutHealth implements repository.HotStore.
func (s *Store) PutHealth(ctx context.Context, snap models.HealthSnapshot) error {
	fields := encodeHealth(snap)
	healthKeyStr := s.key(healthKey(snap.Venue))
	apply := func(ctx context.Context) error {
		return s.client.HSet(ctx, healthKeyStr, fields).Err()
	}
	if err := apply(ctx); err != nil {
		s.buffer.enqueue(job{apply: apply})
		return nil
	}
	s.publish(ctx, "health", snap.Venue, "")
	return nil
}

// PutGap implements repository.HotStore.
func (s *Store) PutGap(ctx context.Context, gap *models.GapMarker) error {
	entry, err := json.Marshal(encodeGap(gap))
	if err != nil {
		return fmt.Errorf("encode gap: %w", err)
	}
	seriesKey := s.key(gapsRecentKey(gap.Venue, gap.Instrument))
	apply := func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		pipe.LPush(ctx, seriesKey, entry)
		pipe.LTrim(ctx, seriesKey, 0, gapsRecentCap-1)
		_, err := pipe.Exec(ctx)
		return err
	}
	if err := apply(ctx); err != nil {
		s.buffer.enqueue(job{apply: apply})
		return nil
	}
	s.publish(ctx, "gap", gap.Venue, gap.Instrument)
	return nil
}

var _ repository.HotStore = (*Store)(nil)

func encodeBook(snap *models.OrderBookSnapshot) (map[string]interface{}, error) {
	bids, err := json.Marshal(snap.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := json.Marshal(snap.Asks)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"venue":          snap.Venue,
		"instrument":     snap.Instrument,
		"venue_time":     snap.VenueTime.Format(time.RFC3339Nano),
		"local_time":     snap.LocalTime.Format(time.RFC3339Nano),
		"sequence_id":    snap.SequenceID,
		"bids":           string(bids),
		"asks":           string(asks),
		"depth_captured": snap.DepthCaptured,
		"source":         snap.Source.String(),
	}, nil
}

func encodeMetricSample(sample models.MetricSample) (map[string]interface{}, error) {
	out := map[string]interface{}{
		"metric_name": sample.MetricName,
		"venue":       sample.Venue,
		"instrument":  sample.Instrument,
		"timestamp":   sample.Timestamp.Format(time.RFC3339Nano),
		"value":       sample.Value.String(),
	}
	if sample.ZScore != nil {
		out["zscore"] = sample.ZScore.String()
	}
	return out, nil
}

func encodeAlert(alert *models.Alert) (map[string]interface{}, error) {
	ctxJSON, err := json.Marshal(alert.Context)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"id":                alert.ID,
		"alert_type":        alert.AlertType,
		"status":            string(alert.Status),
		"priority":          string(alert.Priority),
		"severity":          alert.Severity,
		"venue":             alert.Venue,
		"instrument":        alert.Instrument,
		"trigger_metric":    alert.TriggerMetric,
		"trigger_value":     alert.TriggerValue.String(),
		"trigger_threshold": alert.TriggerThreshold.String(),
		"comparison":        string(alert.Comparison),
		"triggered_at":      alert.TriggeredAt.Format(time.RFC3339Nano),
		"peak_value":        alert.PeakValue.String(),
		"peak_at":           alert.PeakAt.Format(time.RFC3339Nano),
		"escalated":         alert.Escalated,
		"context":           string(ctxJSON),
	}
	if alert.ZScoreValue != nil {
		fields["zscore_value"] = alert.ZScoreValue.String()
	}
	if alert.ZScoreThreshold != nil {
		fields["zscore_threshold"] = alert.ZScoreThreshold.String()
	}
	if alert.ResolvedAt != nil {
		fields["resolved_at"] = alert.ResolvedAt.Format(time.RFC3339Nano)
	}
	if alert.EscalatedAt != nil {
		fields["escalated_at"] = alert.EscalatedAt.Format(time.RFC3339Nano)
	}
	if alert.ResolutionType != nil {
		fields["resolution_type"] = string(*alert.ResolutionType)
	}
	return fields, nil
}

func encodeHealth(snap models.HealthSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"venue":           snap.Venue,
		"status":          string(snap.Status),
		"last_message_at": snap.LastMessageAt.Format(time.RFC3339Nano),
		"message_count":   snap.MessageCount,
		"lag_millis":      snap.LagMillis,
		"reconnect_count": snap.ReconnectCount,
		"gaps_last_hour":  snap.GapsLastHour,
	}
}

func encodeGap(gap *models.GapMarker) map[string]interface{} {
	return map[string]interface{}{
		"venue":           gap.Venue,
		"instrument":      gap.Instrument,
		"gap_start":       gap.GapStart.Format(time.RFC3339Nano),
		"gap_end":         gap.GapEnd.Format(time.RFC3339Nano),
		"duration_ms":     gap.Duration.Milliseconds(),
		"reason":          string(gap.Reason),
		"sequence_before": gap.SequenceBefore,
		"sequence_after":  gap.SequenceAfter,
	}
}
