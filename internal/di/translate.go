package di

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/pipeline"
	"MarketSentry/internal/venue"
	"MarketSentry/pkg/config"
)

// venueAdapterConfig converts one configured venue into the plain Config
// internal/venue.Adapter consumes.
func venueAdapterConfig(v config.VenueConfig) venue.Config {
	instruments := make([]venue.InstrumentConfig, len(v.Instruments))
	for i, inst := range v.Instruments {
		instruments[i] = venue.InstrumentConfig{
			Instrument:    inst.Instrument,
			VenueSymbol:   inst.VenueSymbol,
			DepthCaptured: inst.DepthCaptured,
		}
	}
	return venue.Config{
		Venue:             v.Name,
		WSURL:             v.WSURL,
		RESTBaseURL:       v.RESTBaseURL,
		Instruments:       instruments,
		PingInterval:      v.PingInterval,
		PongTimeout:       v.PongTimeout,
		InitialBackoff:    v.InitialBackoff,
		MaxBackoff:        v.MaxBackoff,
		BackoffMultiplier: v.BackoffMultiplier,
		MaxAttempts:       v.MaxAttempts,
		GapTimeout:        v.GapTimeout,
		RESTPollRate:      v.RESTPollRate,
		RESTPollBurst:     v.RESTPollBurst,
	}
}

// alertDefinitionsFromConfig converts the alert-definitions document into
// the domain model the detector's registry resolves against.
func alertDefinitionsFromConfig(defs []config.AlertDefConfig) []models.AlertDefinition {
	out := make([]models.AlertDefinition, len(defs))
	for i, d := range defs {
		out[i] = models.AlertDefinition{
			AlertType:          d.AlertType,
			MetricName:         d.MetricName,
			DefaultPriority:    models.Priority(d.DefaultPriority),
			DefaultSeverity:    d.DefaultSeverity,
			Comparison:         models.Comparison(d.Comparison),
			RequiresZScore:     d.RequiresZScore,
			PersistenceSeconds: secondsToDuration(d.PersistenceSeconds),
			ThrottleSeconds:    secondsToDuration(d.ThrottleSeconds),
			EscalationSeconds:  secondsToDuration(d.EscalationSeconds),
			EscalatesTo:        d.EscalatesTo,
			Channels:           d.Channels,
			Enabled:            d.Enabled,
		}
	}
	return out
}

// thresholdsFromConfig converts the per-instrument thresholds document,
// parsing the decimal strings the YAML layer leaves untouched so precision
// survives the round trip through text.
func thresholdsFromConfig(ths []config.ThresholdConfig) ([]models.Threshold, error) {
	out := make([]models.Threshold, len(ths))
	for i, t := range ths {
		primary, err := decimal.NewFromString(t.PrimaryThreshold)
		if err != nil {
			return nil, fmt.Errorf("threshold %s/%s: primary_threshold: %w", t.AlertType, t.Instrument, err)
		}
		threshold := models.Threshold{
			AlertType:        t.AlertType,
			Instrument:       t.Instrument,
			PrimaryThreshold: primary,
			Enabled:          t.Enabled,
		}
		if t.ZScoreThreshold != nil {
			z, err := decimal.NewFromString(*t.ZScoreThreshold)
			if err != nil {
				return nil, fmt.Errorf("threshold %s/%s: zscore_threshold: %w", t.AlertType, t.Instrument, err)
			}
			threshold.ZScoreThreshold = &z
		}
		if t.PriorityOverride != nil {
			p := models.Priority(*t.PriorityOverride)
			threshold.PriorityOverride = &p
		}
		out[i] = threshold
	}
	return out, nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// basisPairsFromConfig converts the basis-pairs document into the pipeline's
// routing table.
func basisPairsFromConfig(pairs []config.BasisPairConfig) []pipeline.BasisPair {
	out := make([]pipeline.BasisPair, len(pairs))
	for i, p := range pairs {
		out[i] = pipeline.BasisPair{Instrument: p.Instrument, PerpVenue: p.PerpVenue, SpotVenue: p.SpotVenue}
	}
	return out
}

// crossVenuePairsFromConfig converts the cross-venue-pairs document into the
// pipeline's routing table.
func crossVenuePairsFromConfig(pairs []config.CrossVenuePairConfig) []pipeline.CrossVenuePair {
	out := make([]pipeline.CrossVenuePair, len(pairs))
	for i, p := range pairs {
		out[i] = pipeline.CrossVenuePair{Instrument: p.Instrument, VenueA: p.VenueA, VenueB: p.VenueB}
	}
	return out
}
