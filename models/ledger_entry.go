package models

import "time"

// LedgerReason tags why a balance moved.
type LedgerReason string

const (
	ReasonTask       LedgerReason = "task"
	ReasonAction     LedgerReason = "action"
	ReasonRedemption LedgerReason = "redemption"
	ReasonAdjustment LedgerReason = "adjustment"
)

// PointLedgerEntry is the audit row written with every balance change.
type PointLedgerEntry struct {
	ID           string       `gorm:"primaryKey;type:uuid" json:"id"`
	ActorID      string       `gorm:"type:varchar(128);not null;index" json:"actor_id"`
	Requested    int64        `gorm:"not null" json:"requested"` // signed
	Applied      int64        `gorm:"not null" json:"applied"`   // signed, after clamping
	BalanceAfter int64        `gorm:"not null" json:"balance_after"`
	Reason       LedgerReason `gorm:"type:varchar(32);not null" json:"reason"`
	Reference    string       `gorm:"type:varchar(255)" json:"reference,omitempty"` // task id, request id, admin note
	CreatedAt    time.Time    `gorm:"index" json:"created_at"`
}
