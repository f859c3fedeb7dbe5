package detector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/domain/repository"
	"MarketSentry/pkg/logger"
)

// throttleEntry records when a condition-key last fired and whether that
// episode has since resolved. Dedup/throttle only suppresses a new fire
// once the prior episode is resolved and still inside throttle_seconds.
type throttleEntry struct {
	lastTriggeredAt time.Time
	resolved        bool
}

// Config tunes the detector's escalation scan cadence. Everything else
// (thresholds, definitions) lives in the Registry.
type Config struct {
	EscalationScanInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.EscalationScanInterval <= 0 {
		c.EscalationScanInterval = time.Second
	}
	return c
}

// AlertDispatch pairs a finalized alert with the notification channels its
// definition resolves to, so the dispatcher task downstream doesn't need
// its own copy of the registry just to know where to send it.
type AlertDispatch struct {
	Alert    *models.Alert
	Channels []string
}

// Detector is the single task that owns the active-alerts map, the
// persistence-cell map, and the throttle/dedup map. None of the three are
// safe for concurrent access; Run is the only entry point that mutates
// them, matching the single-owner discipline used by internal/zscore and
// internal/venue.
//
// The detector never talks to the hot store, cold store, or dispatcher
// directly. Every lifecycle transition (fired, resolved, escalated) emits
// onto storeOut and dispatchOut instead, which the pipeline's alert-store
// and alert-dispatcher tasks consume independently and in parallel, per
// the fan-out the data flow describes at that arrow.
type Detector struct {
	cfg      Config
	registry *Registry
	clock    repository.Clock
	log      *logger.Logger
	metrics  repository.Metrics

	storeOut    chan<- *models.Alert
	dispatchOut chan<- AlertDispatch

	activeAlerts map[models.ConditionKey]*models.Alert
	persistence  *persistenceCells
	throttle     map[models.ConditionKey]throttleEntry
}

// New builds a Detector. storeOut/dispatchOut may be nil in tests that only
// care about in-memory lifecycle transitions.
func New(registry *Registry, clock repository.Clock, log *logger.Logger, metrics repository.Metrics, storeOut chan<- *models.Alert, dispatchOut chan<- AlertDispatch, cfg Config) *Detector {
	return &Detector{
		cfg:          cfg.withDefaults(),
		registry:     registry,
		clock:        clock,
		log:          log,
		metrics:      metrics,
		storeOut:     storeOut,
		dispatchOut:  dispatchOut,
		activeAlerts: make(map[models.ConditionKey]*models.Alert),
		persistence:  newPersistenceCells(),
		throttle:     make(map[models.ConditionKey]throttleEntry),
	}
}

// Run drives the detector from two input channels until ctx is cancelled:
// samples from the metrics engine, and gaps from the venue adapters. A
// single ticker drives the escalation scan per spec's "avoid per-alert
// timers" design note.
func (d *Detector) Run(ctx context.Context, samples <-chan models.MetricSample, gaps <-chan *models.GapMarker) {
	ticker := time.NewTicker(d.cfg.EscalationScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			d.processSample(ctx, sample)
		case gap, ok := <-gaps:
			if !ok {
				continue
			}
			d.processGap(gap)
		case <-ticker.C:
			d.scanEscalations(ctx, d.clock.Now())
		}
	}
}

// processSample implements the full evaluation contract for every alert
// definition watching this sample's metric.
func (d *Detector) processSample(ctx context.Context, sample models.MetricSample) {
	now := d.clock.Now()
	for _, watching := range d.registry.DefinitionsForMetric(sample.MetricName) {
		def, threshold, ok := d.registry.Resolve(watching.AlertType, sample.Instrument)
		if !ok {
			continue
		}
		d.evaluate(ctx, def, threshold, sample, now)
	}
}

// evaluate runs one alert definition's evaluation contract against one
// sample, mutating the persistence/active/throttle maps as the contract
// dictates and dispatching/persisting on a fire.
func (d *Detector) evaluate(ctx context.Context, def models.AlertDefinition, threshold models.Threshold, sample models.MetricSample, now time.Time) {
	key := models.ConditionKey{AlertType: def.AlertType, Venue: sample.Venue, Instrument: sample.Instrument}

	conditionTrue := compareCondition(def.Comparison, sample.Value, threshold.PrimaryThreshold)
	if !conditionTrue {
		d.persistence.clear(key)
		if active, ok := d.activeAlerts[key]; ok {
			d.resolveActive(ctx, key, active, now, models.ResolutionAuto, &sample.Value)
		}
		return
	}

	if def.RequiresZScore {
		pass, skip := zscoreGate(sample, threshold)
		if !pass {
			d.recordSkip(skip)
			return
		}
	}

	if def.PersistenceSeconds > 0 {
		cell, ok := d.persistence.get(key)
		if !ok {
			d.persistence.start(key, now)
			d.recordSkip(skipPersistenceStart)
			return
		}
		if cell.Elapsed(now) < def.PersistenceSeconds {
			d.recordSkip(skipPersistenceNotMet)
			return
		}
	}

	if active, ok := d.activeAlerts[key]; ok {
		active.UpdatePeak(sample.Value, now)
		return
	}

	if entry, ok := d.throttle[key]; ok && entry.resolved && now.Sub(entry.lastTriggeredAt) < def.ThrottleSeconds {
		d.recordSkip(skipThrottled)
		return
	}

	alert := fireAlert(def, threshold, sample, now)
	d.activeAlerts[key] = alert
	d.throttle[key] = throttleEntry{lastTriggeredAt: now, resolved: false}
	d.onFired(ctx, alert)
}

// resolveActive implements the active → resolved transition reached via
// auto-resolution (the condition itself evaluated false).
func (d *Detector) resolveActive(ctx context.Context, key models.ConditionKey, alert *models.Alert, now time.Time, reason models.ResolutionType, value *decimal.Decimal) {
	resolveAlert(alert, now, reason, value)
	delete(d.activeAlerts, key)
	if entry, ok := d.throttle[key]; ok {
		entry.resolved = true
		d.throttle[key] = entry
	}
	if d.metrics != nil {
		d.metrics.RecordAlertResolved(alert.AlertType)
	}
	d.emitStore(ctx, alert)
	if d.log != nil {
		d.log.Info("alert resolved",
			logger.String("alert_id", alert.ID),
			logger.String("alert_type", alert.AlertType),
			logger.String("instrument", alert.Instrument),
		)
	}
}

// onFired runs the pending → active transition's side effects: metrics,
// storage, and the outbound notification dispatch.
func (d *Detector) onFired(ctx context.Context, alert *models.Alert) {
	if d.metrics != nil {
		d.metrics.RecordAlertFired(alert.AlertType, string(alert.Priority))
	}
	d.emitStore(ctx, alert)
	d.emitDispatch(alert)
	if d.log != nil {
		d.log.Warn("alert fired",
			logger.String("alert_id", alert.ID),
			logger.String("alert_type", alert.AlertType),
			logger.String("instrument", alert.Instrument),
			logger.String("priority", string(alert.Priority)),
		)
	}
}

// onEscalated runs the active → escalated transition's side effects.
func (d *Detector) onEscalated(ctx context.Context, alert *models.Alert) {
	if d.metrics != nil {
		d.metrics.RecordAlertEscalated(alert.AlertType)
	}
	d.emitStore(ctx, alert)
	d.emitDispatch(alert)
}

// emitStore sends a lifecycle event to the alert-store task. Alert
// persistence is not allowed to be lost, so the send blocks until the
// store task (or ctx cancellation) takes it — the same stall-not-drop
// contract the cold store applies to its own writes.
func (d *Detector) emitStore(ctx context.Context, alert *models.Alert) {
	if d.storeOut == nil {
		return
	}
	select {
	case d.storeOut <- alert:
	case <-ctx.Done():
	}
}

// emitDispatch sends a lifecycle event to the alert-dispatcher task. A
// slow or unreachable notification channel must never stall the
// detector's processing loop, so a saturated queue drops the
// notification with a warning instead of blocking.
func (d *Detector) emitDispatch(alert *models.Alert) {
	if d.dispatchOut == nil {
		return
	}
	def, ok := d.registry.Definition(alert.AlertType)
	channels := []string{"console"}
	if ok && len(def.Channels) > 0 {
		channels = def.Channels
	}
	select {
	case d.dispatchOut <- AlertDispatch{Alert: alert, Channels: channels}:
	default:
		if d.metrics != nil {
			d.metrics.RecordError("alert_dispatch_queue_dropped")
		}
		if d.log != nil {
			d.log.Warn("alert dispatcher queue full, dropping notification", logger.String("alert_id", alert.ID))
		}
	}
}

func (d *Detector) recordSkip(reason string) {
	if reason == skipNone {
		return
	}
	if d.metrics != nil {
		d.metrics.RecordEvaluationSkip(reason)
	}
}

// processGap clears every persistence cell for the gap's venue/instrument:
// a sequence gap invalidates whatever continuous run those cells were
// measuring.
func (d *Detector) processGap(gap *models.GapMarker) {
	if gap == nil {
		return
	}
	d.persistence.clearVenueInstrument(gap.Venue, gap.Instrument)
	if d.metrics != nil {
		d.metrics.RecordGap(gap.Venue, string(gap.Reason))
	}
}

// ActiveAlertCount reports how many alerts are currently active, for
// health/diagnostics surfaces.
func (d *Detector) ActiveAlertCount() int {
	return len(d.activeAlerts)
}
