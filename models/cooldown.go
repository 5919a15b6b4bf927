package models

import "time"

// CooldownRecord remembers the last successful use of a repeatable action.
// The timestamp is stored as unix nanoseconds so the boundary comparison is
// exact on every dialect (Postgres timestamps stop at microseconds).
type CooldownRecord struct {
	ActorID         string `gorm:"primaryKey;type:varchar(128)" json:"actor_id"`
	ActionKey       string `gorm:"primaryKey;type:varchar(128)" json:"action_key"`
	LastTriggeredNs int64  `gorm:"not null" json:"-"`
	TriggerCount    int64  `gorm:"not null;default:0" json:"trigger_count"`
}

// LastTriggeredAt returns the stored timestamp in UTC.
func (r CooldownRecord) LastTriggeredAt() time.Time {
	return time.Unix(0, r.LastTriggeredNs).UTC()
}
