package models

import "time"

type TaskType string

const (
	TaskTypeSocialShare TaskType = "social_share"
	TaskTypeCheckIn     TaskType = "daily_check_in"
	TaskTypeReferral    TaskType = "referral"
	TaskTypeEngagement  TaskType = "engagement"
	TaskTypeOther       TaskType = "other"
)

// MiningTask is a catalog entry an actor can complete repeatedly for points.
type MiningTask struct {
	ID            string   `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Title         string   `gorm:"not null" json:"title"`
	Description   string   `gorm:"type:text" json:"description,omitempty"`
	Points        int64    `gorm:"not null" json:"points"`
	Enabled       bool     `gorm:"not null;default:true;index" json:"enabled"`
	CooldownHours int      `gorm:"not null;default:0" json:"cooldown_hours"`
	TaskType      TaskType `gorm:"type:varchar(32);not null;default:'other'" json:"task_type"`
	// Requirements are opaque prerequisite conditions, kept in order.
	Requirements []string  `gorm:"serializer:json;type:text" json:"requirements"`
	SortOrder    int       `gorm:"default:0" json:"sort_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Cooldown converts CooldownHours into a duration.
func (t MiningTask) Cooldown() time.Duration {
	return time.Duration(t.CooldownHours) * time.Hour
}
