package models

import "time"

// PersistenceCell tracks how long a condition has continuously evaluated
// true for one ConditionKey. Created when the condition first evaluates
// true; cleared whenever evaluation becomes false.
type PersistenceCell struct {
	Key         ConditionKey
	FirstSeenAt time.Time
}

// Elapsed reports how long the condition has held as of now.
func (c PersistenceCell) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.FirstSeenAt)
}
