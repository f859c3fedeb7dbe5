package detector

import (
	"time"

	"MarketSentry/internal/domain/models"
)

// persistenceCells tracks how long each condition-key has continuously
// evaluated true. Owned exclusively by the Detector's single processing
// goroutine; never read or written from anywhere else.
type persistenceCells struct {
	cells map[models.ConditionKey]models.PersistenceCell
}

func newPersistenceCells() *persistenceCells {
	return &persistenceCells{cells: make(map[models.ConditionKey]models.PersistenceCell)}
}

func (p *persistenceCells) clear(key models.ConditionKey) {
	delete(p.cells, key)
}

func (p *persistenceCells) start(key models.ConditionKey, now time.Time) {
	p.cells[key] = models.PersistenceCell{Key: key, FirstSeenAt: now}
}

func (p *persistenceCells) get(key models.ConditionKey) (models.PersistenceCell, bool) {
	cell, ok := p.cells[key]
	return cell, ok
}

// clearVenueInstrument drops every persistence cell for the given venue and
// instrument, across all alert types. Called on a sequence-gap reset, since
// a gap invalidates whatever continuous run the cell was measuring.
func (p *persistenceCells) clearVenueInstrument(venue, instrument string) {
	for key := range p.cells {
		if key.Venue == venue && key.Instrument == instrument {
			delete(p.cells, key)
		}
	}
}
