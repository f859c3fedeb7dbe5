package coldstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
	"MarketSentry/pkg/queue"
)

// retryJobType is the pkg/queue message type routed to retryJob.Handle.
const retryJobType = "coldstore_retry"

// fallbackPayload is the durable, JSON-serializable form of one failed
// batch, keyed by the table it belongs to.
type fallbackPayload struct {
	Table   string            `json:"table"`
	Samples []sampleFallback  `json:"samples,omitempty"`
	Alerts  []json.RawMessage `json:"alerts,omitempty"`
	Gaps    []gapFallback     `json:"gaps,omitempty"`
}

type sampleFallback struct {
	MetricName string `json:"metric_name"`
	Venue      string `json:"venue"`
	Instrument string `json:"instrument"`
	Timestamp  string `json:"timestamp"`
	Value      string `json:"value"`
	HasZScore  bool   `json:"has_zscore"`
	ZScore     string `json:"zscore,omitempty"`
}

type gapFallback struct {
	Venue          string `json:"venue"`
	Instrument     string `json:"instrument"`
	GapStart       string `json:"gap_start"`
	GapEnd         string `json:"gap_end"`
	DurationMs     int64  `json:"duration_ms"`
	Reason         string `json:"reason"`
	SequenceBefore int64  `json:"sequence_before"`
	SequenceAfter  int64  `json:"sequence_after"`
}

func encodeSamplesFallback(samples []models.MetricSample) fallbackPayload {
	out := make([]sampleFallback, 0, len(samples))
	for _, s := range samples {
		f := sampleFallback{
			MetricName: s.MetricName,
			Venue:      s.Venue,
			Instrument: s.Instrument,
			Timestamp:  s.Timestamp.Format(time.RFC3339Nano),
			Value:      s.Value.String(),
		}
		if s.ZScore != nil {
			f.HasZScore = true
			f.ZScore = s.ZScore.String()
		}
		out = append(out, f)
	}
	return fallbackPayload{Table: "metric_samples", Samples: out}
}

func encodeAlertsFallback(alerts []*models.Alert) fallbackPayload {
	out := make([]json.RawMessage, 0, len(alerts))
	for _, a := range alerts {
		b, err := json.Marshal(a)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return fallbackPayload{Table: "alert_events", Alerts: out}
}

func encodeGapsFallback(gaps []*models.GapMarker) fallbackPayload {
	out := make([]gapFallback, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, gapFallback{
			Venue:          g.Venue,
			Instrument:     g.Instrument,
			GapStart:       g.GapStart.Format(time.RFC3339Nano),
			GapEnd:         g.GapEnd.Format(time.RFC3339Nano),
			DurationMs:     g.Duration.Milliseconds(),
			Reason:         string(g.Reason),
			SequenceBefore: g.SequenceBefore,
			SequenceAfter:  g.SequenceAfter,
		})
	}
	return fallbackPayload{Table: "gaps", Gaps: out}
}

// fallbackQueue wraps the teacher's Redis-backed queue as the cold store's
// durable, retry-with-backoff, never-silently-drops fallback: a batch that
// exhausts its in-process retry budget is pushed here instead of being
// dropped, and a registered retryJob drains it back into ClickHouse.
type fallbackQueue struct {
	q *queue.RedisQueue
}

// NewFallbackQueue wraps an already-started RedisQueue in producer mode (or
// producer+consumer if the same process also drains it) for cold-store use.
func NewFallbackQueue(q *queue.RedisQueue) *fallbackQueue {
	return &fallbackQueue{q: q}
}

func (f *fallbackQueue) enqueue(ctx context.Context, table string, payload fallbackPayload) error {
	if err := f.q.PublishMessage(ctx, retryJobType, payload); err != nil {
		return fmt.Errorf("enqueue cold store fallback for %s: %w", table, err)
	}
	return nil
}

// retryJob drains fallbackQueue entries back into ClickHouse. Registering
// it on a consumer-mode RedisQueue is what actually replays queued batches;
// a producer-only queue (this process) just durably persists them for a
// consumer (this process restarted, or another instance) to replay.
type retryJob struct {
	db  dbExecer
	log *logger.Logger
}

// NewRetryJob builds the job registered against the consumer-side queue.
func NewRetryJob(db dbExecer, log *logger.Logger) *retryJob {
	return &retryJob{db: db, log: log}
}

func (j *retryJob) Name() string { return "coldstore-retry" }
func (j *retryJob) Type() string { return retryJobType }

func (j *retryJob) Handle(ctx context.Context, payload interface{}) error {
	parsed, err := queue.ParsePayload[fallbackPayload](payload)
	if err != nil {
		return fmt.Errorf("parse cold store fallback payload: %w", err)
	}

	switch parsed.Table {
	case "metric_samples":
		samples := make([]models.MetricSample, 0, len(parsed.Samples))
		for _, s := range parsed.Samples {
			ts, _ := time.Parse(time.RFC3339Nano, s.Timestamp)
			value, err := decimal.NewFromString(s.Value)
			if err != nil {
				if j.log != nil {
					j.log.Error("discarding unparseable queued sample value", logger.Error(err))
				}
				continue
			}
			sample := models.MetricSample{
				MetricName: s.MetricName,
				Venue:      s.Venue,
				Instrument: s.Instrument,
				Timestamp:  ts,
				Value:      value,
			}
			if s.HasZScore {
				z, err := decimal.NewFromString(s.ZScore)
				if err != nil {
					if j.log != nil {
						j.log.Error("discarding unparseable queued sample zscore", logger.Error(err))
					}
				} else {
					sample.ZScore = &z
				}
			}
			samples = append(samples, sample)
		}
		return insertSamples(ctx, j.db, samples)

	case "gaps":
		gaps := make([]*models.GapMarker, 0, len(parsed.Gaps))
		for _, g := range parsed.Gaps {
			start, _ := time.Parse(time.RFC3339Nano, g.GapStart)
			end, _ := time.Parse(time.RFC3339Nano, g.GapEnd)
			gaps = append(gaps, &models.GapMarker{
				Venue:          g.Venue,
				Instrument:     g.Instrument,
				GapStart:       start,
				GapEnd:         end,
				Duration:       time.Duration(g.DurationMs) * time.Millisecond,
				Reason:         models.GapReason(g.Reason),
				SequenceBefore: g.SequenceBefore,
				SequenceAfter:  g.SequenceAfter,
			})
		}
		return insertGaps(ctx, j.db, gaps)

	case "alert_events":
		alerts := make([]*models.Alert, 0, len(parsed.Alerts))
		for _, raw := range parsed.Alerts {
			var a models.Alert
			if err := json.Unmarshal(raw, &a); err != nil {
				if j.log != nil {
					j.log.Error("discarding unparseable queued alert event", logger.Error(err))
				}
				continue
			}
			alerts = append(alerts, &a)
		}
		return insertAlertEvents(ctx, j.db, alerts)

	default:
		return fmt.Errorf("unknown cold store fallback table %q", parsed.Table)
	}
}

var _ queue.Job = (*retryJob)(nil)
