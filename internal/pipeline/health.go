package pipeline

import (
	"context"
	"time"

	"MarketSentry/pkg/logger"
)

// runHealth periodically writes each venue's HealthSnapshot into the hot
// store and surfaces storage-side degradation as metrics and log events.
func (p *Pipeline) runHealth(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()

	p.publishHealth()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishHealth()
		}
	}
}

func (p *Pipeline) publishHealth() {
	for _, v := range p.venues {
		p.sendHot(hotWrite{kind: hotWriteHealth, health: v.Health()})
	}

	if p.hot != nil && p.hot.Degraded() {
		if p.metrics != nil {
			p.metrics.RecordError("hot_store_degraded")
		}
		if p.log != nil {
			p.log.Warn("hot store degraded, buffering writes in memory")
		}
	}

	if p.cold != nil {
		depth := p.cold.QueueDepth()
		if p.metrics != nil {
			p.metrics.RecordQueueDepth("coldstore_fallback", depth)
		}
		if depth > 0 && p.log != nil {
			p.log.Warn("cold store fallback queue non-empty", logger.Int("depth", depth))
		}
	}
}
