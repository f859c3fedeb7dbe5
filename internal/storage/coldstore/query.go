package coldstore

import (
	"context"
	"fmt"
	"time"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// GapWindow is one persisted gap, read back for query-time exclusion: a
// caller computing an aggregate over a time range should treat any range
// overlapping a gap window as incomplete rather than silently averaging
// over missing data.
type GapWindow struct {
	Venue      string
	Instrument string
	Start      time.Time
	End        time.Time
	Reason     models.GapReason
}

// QueryGaps returns persisted gap windows for one (venue, instrument) that
// overlap [from, to], ordered by start time.
func (s *Store) QueryGaps(ctx context.Context, venue, instrument string, from, to time.Time) ([]GapWindow, error) {
	start := time.Now()
	const q = `
		SELECT venue, instrument, gap_start, gap_end, reason
		FROM gaps
		WHERE venue = ? AND instrument = ? AND gap_start <= ? AND gap_end >= ?
		ORDER BY gap_start ASC
	`
	rows, err := s.client.DB().QueryContext(ctx, q, venue, instrument, to, from)
	if err != nil {
		if s.log != nil {
			s.log.Error("cold store query_gaps error",
				logger.String("venue", venue), logger.String("instrument", instrument), logger.Error(err))
		}
		return nil, fmt.Errorf("query gaps: %w", err)
	}
	defer rows.Close()

	var out []GapWindow
	for rows.Next() {
		var w GapWindow
		var reason string
		if err := rows.Scan(&w.Venue, &w.Instrument, &w.Start, &w.End, &reason); err != nil {
			return nil, fmt.Errorf("scan gap window: %w", err)
		}
		w.Reason = models.GapReason(reason)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if s.log != nil {
		s.log.Info("cold store query_gaps ok",
			logger.String("venue", venue), logger.String("instrument", instrument),
			logger.Int("rows", len(out)), logger.Duration("duration_ms", time.Since(start)))
	}
	return out, nil
}
