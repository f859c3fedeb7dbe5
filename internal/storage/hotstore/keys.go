package hotstore

import (
	"fmt"
	"time"
)

// Key layout is bit-exact per the external UI contract: every logical key
// below is prefixed with the configured Redis key prefix by Store, never
// hand-built by callers.

func bookKey(venue, instrument string) string {
	return fmt.Sprintf("orderbook:%s:%s", venue, instrument)
}

func zscoreSeriesKey(venue, instrument, metric string) string {
	return fmt.Sprintf("zscore:%s:%s:%s", venue, instrument, metric)
}

func zscoreCurrentKey(venue, instrument string) string {
	return fmt.Sprintf("zscore:current:%s:%s", venue, instrument)
}

func alertActiveKey(alertID string) string {
	return fmt.Sprintf("alerts:active:%s", alertID)
}

func alertsByInstrumentKey(instrument string) string {
	return fmt.Sprintf("alerts:by_instrument:%s", instrument)
}

func alertsByPriorityKey(priority string) string {
	return fmt.Sprintf("alerts:by_priority:%s", priority)
}

func alertDedupKey(alertType, venue, instrument string) string {
	return fmt.Sprintf("alerts:dedup:%s:%s:%s", alertType, venue, instrument)
}

func healthKey(venue string) string {
	return fmt.Sprintf("health:%s", venue)
}

// gapsRecentKey is not part of the bit-exact table but is a direct
// consequence of it: the hot-state description names "recent gap markers"
// as part of the projection, so they get a bounded list keyed the same way
// the z-score rolling buffer is, scoped per (venue, instrument).
func gapsRecentKey(venue, instrument string) string {
	return fmt.Sprintf("gaps:recent:%s:%s", venue, instrument)
}

// gapsRecentCap bounds the recent-gaps list per instrument.
const gapsRecentCap = 50

// updatesChannel is the pub/sub topic published on every record change, so
// the external UI can push updates instead of polling.
const updatesChannel = "updates"

// zscoreSeriesCap bounds the per-metric rolling buffer kept in the hot
// store; it mirrors the z-score engine's own default window so the
// projection never grows unbounded.
const zscoreSeriesCap = 300

// dedupTTL is how long an alerts:dedup:* marker survives. It is refreshed
// on every fire of the same (type, venue, instrument) condition, giving
// external consumers of the hot store the same throttle visibility the
// detector keeps in-process.
const dedupTTL = 5 * time.Minute
