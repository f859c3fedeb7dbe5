package detector

import (
	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

// Skip reasons surfaced on the telemetry path. skipNone means the primary
// comparison itself was false, which is not counted as a skip.
const (
	skipNone              = ""
	skipZScoreWarmup      = "zscore_warmup"
	skipZScoreBelow       = "zscore_below"
	skipPersistenceStart  = "persistence_starting"
	skipPersistenceNotMet = "persistence_not_met"
	skipThrottled         = "throttled"
)

// compareCondition implements evaluation contract step 1. All four
// operators use strict inequality, uniformly, including abs_gt/abs_lt.
func compareCondition(comparison models.Comparison, value, threshold decimal.Decimal) bool {
	switch comparison {
	case models.ComparisonGT:
		return value.GreaterThan(threshold)
	case models.ComparisonLT:
		return value.LessThan(threshold)
	case models.ComparisonAbsGT:
		return value.Abs().GreaterThan(threshold)
	case models.ComparisonAbsLT:
		return value.Abs().LessThan(threshold)
	default:
		return false
	}
}

// zscoreGate implements evaluation contract step 2. Absence of a z-score
// (warmup, flat-market guard, or a gap reset) always blocks the fire.
func zscoreGate(sample models.MetricSample, threshold models.Threshold) (pass bool, skip string) {
	if sample.ZScore == nil {
		return false, skipZScoreWarmup
	}
	zThreshold := decimal.Zero
	if threshold.ZScoreThreshold != nil {
		zThreshold = *threshold.ZScoreThreshold
	}
	if sample.ZScore.Abs().LessThan(zThreshold) {
		return false, skipZScoreBelow
	}
	return true, skipNone
}
