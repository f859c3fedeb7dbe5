package venue

import (
	"testing"
	"time"

	"MarketSentry/internal/domain/models"
)

func TestSeqTracker_ForwardJumpIsNeverAGap(t *testing.T) {
	tr := newSeqTracker(5 * time.Second)
	now := time.Now()
	tr.observe("binance", "BTC-USDT", 100, now)
	if gap := tr.observe("binance", "BTC-USDT", 250, now.Add(time.Millisecond)); gap != nil {
		t.Fatalf("forward jump must never be reported as a gap, got %+v", gap)
	}
}

func TestSeqTracker_BackwardsIsAGap(t *testing.T) {
	tr := newSeqTracker(5 * time.Second)
	now := time.Now()
	tr.observe("binance", "BTC-USDT", 100, now)
	gap := tr.observe("binance", "BTC-USDT", 99, now.Add(time.Millisecond))
	if gap == nil {
		t.Fatalf("expected a gap for a backwards sequence")
	}
	if gap.Reason != models.ReasonSequenceRegression {
		t.Fatalf("expected reason sequence-regression, got %q", gap.Reason)
	}
}

func TestSeqTracker_DuplicateIsAGapWithZeroDuration(t *testing.T) {
	tr := newSeqTracker(5 * time.Second)
	now := time.Now()
	tr.observe("binance", "BTC-USDT", 100, now)
	gap := tr.observe("binance", "BTC-USDT", 100, now.Add(time.Millisecond))
	if gap == nil {
		t.Fatalf("expected a gap for a duplicate sequence")
	}
	if gap.Reason != models.ReasonDuplicate {
		t.Fatalf("expected reason duplicate, got %q", gap.Reason)
	}
	if gap.Duration != 0 {
		t.Fatalf("expected zero duration for a duplicate, got %v", gap.Duration)
	}
}

func TestSeqTracker_FirstObservationNeverGaps(t *testing.T) {
	tr := newSeqTracker(5 * time.Second)
	if gap := tr.observe("binance", "BTC-USDT", 1, time.Now()); gap != nil {
		t.Fatalf("first observation for an instrument must never produce a gap, got %+v", gap)
	}
}

func TestSeqTracker_SilenceProducesTimeoutGapOnce(t *testing.T) {
	tr := newSeqTracker(5 * time.Second)
	base := time.Now()
	tr.observe("binance", "BTC-USDT", 1, base)

	gaps := tr.checkSilence("binance", base.Add(6*time.Second))
	if len(gaps) != 1 || gaps[0].Reason != models.ReasonTimeout {
		t.Fatalf("expected exactly one timeout gap, got %+v", gaps)
	}

	gaps = tr.checkSilence("binance", base.Add(7*time.Second))
	if len(gaps) != 0 {
		t.Fatalf("expected no repeat timeout gap one second later, got %+v", gaps)
	}
}

func TestSeqTracker_NoSilenceBelowThreshold(t *testing.T) {
	tr := newSeqTracker(5 * time.Second)
	base := time.Now()
	tr.observe("binance", "BTC-USDT", 1, base)
	if gaps := tr.checkSilence("binance", base.Add(3*time.Second)); len(gaps) != 0 {
		t.Fatalf("expected no gap below the silence threshold, got %+v", gaps)
	}
}
