package coldstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// dbExecer is the subset of *sql.DB the batch inserters need; narrowing it
// keeps them testable against a fake without pulling in database/sql/driver.
type dbExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// insertChunkSize bounds how many rows go into a single multi-row INSERT,
// independent of the configured flush batch size, so an unusually large
// backlog (after a long outage) still inserts in manageable chunks.
const insertChunkSize = 2000

func (s *Store) flushSamples(ctx context.Context) error {
	s.mu.Lock()
	batch := s.samples
	s.samples = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	s.release(len(batch))

	err := s.withRetry(ctx, func(ctx context.Context) error {
		return insertSamples(ctx, s.client.DB(), batch)
	})
	if err != nil {
		return s.onFlushFailure(ctx, "metric_samples", err, encodeSamplesFallback(batch))
	}
	return nil
}

func (s *Store) flushAlerts(ctx context.Context) error {
	s.mu.Lock()
	batch := s.alerts
	s.alerts = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	s.release(len(batch))

	err := s.withRetry(ctx, func(ctx context.Context) error {
		return insertAlertEvents(ctx, s.client.DB(), batch)
	})
	if err != nil {
		return s.onFlushFailure(ctx, "alert_events", err, encodeAlertsFallback(batch))
	}
	return nil
}

func (s *Store) flushGaps(ctx context.Context) error {
	s.mu.Lock()
	batch := s.gaps
	s.gaps = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	s.release(len(batch))

	err := s.withRetry(ctx, func(ctx context.Context) error {
		return insertGaps(ctx, s.client.DB(), batch)
	})
	if err != nil {
		return s.onFlushFailure(ctx, "gaps", err, encodeGapsFallback(batch))
	}
	return nil
}

// withRetry retries op up to cfg.RetryMax times (RetryMax+1 attempts in
// all) with a backoff that starts at cfg.RetryBackoff and doubles after
// each failure, without an upper cap.
func (s *Store) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if err := op(ctx); err != nil {
			lastErr = err
			if s.metrics != nil {
				s.metrics.RecordError("coldstore_write_retry")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		return nil
	}
	return lastErr
}

// onFlushFailure hands a batch that exhausted its retry budget to the
// durable fallback queue rather than dropping it; data loss in the cold
// store is unacceptable per the storage contract.
func (s *Store) onFlushFailure(ctx context.Context, table string, err error, payload fallbackPayload) error {
	if s.log != nil {
		s.log.Error("cold store write exhausted retries, enqueueing fallback",
			logger.String("table", table), logger.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordError("coldstore_fallback_enqueued")
	}
	if s.fallback == nil {
		return fmt.Errorf("cold store write to %s failed and no fallback queue is configured: %w", table, err)
	}
	return s.fallback.enqueue(ctx, table, payload)
}

// insertSamples writes rows with price/metric values and z-scores encoded
// as decimal.Decimal's string form into ClickHouse's native Decimal
// columns, matching hotstore's decimal-exact encoding rather than rounding
// through float64.
func insertSamples(ctx context.Context, db dbExecer, samples []models.MetricSample) error {
	return chunkedInsert(len(samples), func(start, end int) error {
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, sample := range samples[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			var zscore interface{}
			if sample.ZScore != nil {
				zscore = sample.ZScore.String()
			}
			args = append(args, sample.MetricName, sample.Venue, sample.Instrument, sample.Timestamp, sample.Value.String(), zscore)
		}
		q := fmt.Sprintf("INSERT INTO metric_samples (metric_name, venue, instrument, timestamp, value, zscore) VALUES %s", strings.Join(values, ","))
		_, err := db.ExecContext(ctx, q, args...)
		return err
	})
}

// insertAlertEvents writes the alert lifecycle record, including the
// peak_at timestamp schema.go declares, with every price/metric value
// encoded decimal-exact via String() rather than Float64().
func insertAlertEvents(ctx context.Context, db dbExecer, alerts []*models.Alert) error {
	return chunkedInsert(len(alerts), func(start, end int) error {
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*22)
		for _, a := range alerts[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

			var zscoreValue, zscoreThreshold, resolutionValue interface{}
			if a.ZScoreValue != nil {
				zscoreValue = a.ZScoreValue.String()
			}
			if a.ZScoreThreshold != nil {
				zscoreThreshold = a.ZScoreThreshold.String()
			}
			if a.ResolutionValue != nil {
				resolutionValue = a.ResolutionValue.String()
			}
			var resolvedAt, escalatedAt interface{}
			if a.ResolvedAt != nil {
				resolvedAt = *a.ResolvedAt
			}
			if a.EscalatedAt != nil {
				escalatedAt = *a.EscalatedAt
			}
			var resolutionType interface{}
			if a.ResolutionType != nil {
				resolutionType = string(*a.ResolutionType)
			}

			args = append(args,
				a.ID, a.AlertType, string(a.Status), string(a.Priority), a.Severity,
				a.Venue, a.Instrument, a.TriggerMetric, a.TriggerValue.String(), a.TriggerThreshold.String(),
				string(a.Comparison), zscoreValue, zscoreThreshold, a.TriggeredAt, resolvedAt,
				boolToUint8(a.Escalated), escalatedAt, a.DurationSeconds, resolutionType, resolutionValue,
				a.PeakValue.String(), a.PeakAt,
			)
		}
		q := fmt.Sprintf(`INSERT INTO alert_events (
			id, alert_type, status, priority, severity,
			venue, instrument, trigger_metric, trigger_value, trigger_threshold,
			comparison, zscore_value, zscore_threshold, triggered_at, resolved_at,
			escalated, escalated_at, duration_seconds, resolution_type, resolution_value,
			peak_value, peak_at
		) VALUES %s`, strings.Join(values, ","))
		_, err := db.ExecContext(ctx, q, args...)
		return err
	})
}

func insertGaps(ctx context.Context, db dbExecer, gaps []*models.GapMarker) error {
	return chunkedInsert(len(gaps), func(start, end int) error {
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, g := range gaps[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, g.Venue, g.Instrument, g.GapStart, g.GapEnd, g.Duration.Milliseconds(), string(g.Reason), g.SequenceBefore, g.SequenceAfter)
		}
		q := fmt.Sprintf("INSERT INTO gaps (venue, instrument, gap_start, gap_end, duration_ms, reason, sequence_before, sequence_after) VALUES %s", strings.Join(values, ","))
		_, err := db.ExecContext(ctx, q, args...)
		return err
	})
}

// chunkedInsert runs insertOne over [0,n) in insertChunkSize-row windows.
func chunkedInsert(n int, insertOne func(start, end int) error) error {
	for start := 0; start < n; start += insertChunkSize {
		end := start + insertChunkSize
		if end > n {
			end = n
		}
		if err := insertOne(start, end); err != nil {
			return err
		}
	}
	return nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
