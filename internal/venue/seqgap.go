package venue

import (
	"time"

	"MarketSentry/internal/domain/models"
)

// seqTracker holds per-instrument sequence and last-message-time state used
// to detect gaps under ADR-005 semantics: forward jumps are normal and
// never reported; a gap fires only when new_seq <= prev_seq (backwards or
// duplicate), plus a separate time-based gap when an instrument goes silent
// past the configured threshold.
type seqTracker struct {
	gapTimeout time.Duration

	lastSeq  map[string]int64
	lastSeen map[string]time.Time
}

func newSeqTracker(gapTimeout time.Duration) *seqTracker {
	return &seqTracker{
		gapTimeout: gapTimeout,
		lastSeq:    make(map[string]int64),
		lastSeen:   make(map[string]time.Time),
	}
}

// observe records a new sequence number for an instrument and returns a
// GapMarker if the sequence rule fires. now is the local receive time.
func (t *seqTracker) observe(venue, instrument string, seq int64, now time.Time) *models.GapMarker {
	prevSeq, hadSeq := t.lastSeq[instrument]
	prevSeen := t.lastSeen[instrument]
	t.lastSeq[instrument] = seq
	t.lastSeen[instrument] = now

	if !hadSeq {
		return nil
	}

	if seq == prevSeq {
		return &models.GapMarker{
			Venue: venue, Instrument: instrument,
			GapStart: prevSeen, GapEnd: now, Duration: 0,
			Reason:         models.ReasonDuplicate,
			SequenceBefore: prevSeq, SequenceAfter: seq,
		}
	}
	if seq < prevSeq {
		return &models.GapMarker{
			Venue: venue, Instrument: instrument,
			GapStart: prevSeen, GapEnd: now, Duration: now.Sub(prevSeen),
			Reason:         models.ReasonSequenceRegression,
			SequenceBefore: prevSeq, SequenceAfter: seq,
		}
	}
	// Forward jump: normal, never reported.
	return nil
}

// checkSilence scans every tracked instrument for time-based gaps as of
// now, and marks the instrument as freshly seen so a single silence period
// is reported only once.
func (t *seqTracker) checkSilence(venue string, now time.Time) []*models.GapMarker {
	var gaps []*models.GapMarker
	for instrument, lastSeen := range t.lastSeen {
		if now.Sub(lastSeen) < t.gapTimeout {
			continue
		}
		gaps = append(gaps, &models.GapMarker{
			Venue: venue, Instrument: instrument,
			GapStart: lastSeen, GapEnd: now, Duration: now.Sub(lastSeen),
			Reason:         models.ReasonTimeout,
			SequenceBefore: t.lastSeq[instrument], SequenceAfter: t.lastSeq[instrument],
		})
		// Treat this instant as the new baseline so the same silence period
		// isn't reported again on the next scan tick.
		t.lastSeen[instrument] = now
	}
	return gaps
}

// forget drops tracked state for an instrument, e.g. on unsubscribe.
func (t *seqTracker) forget(instrument string) {
	delete(t.lastSeq, instrument)
	delete(t.lastSeen, instrument)
}
