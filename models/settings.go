package models

import "time"

// GamificationSettingsRecord persists the typed settings document as JSON.
// There is a single row (ID = 1).
type GamificationSettingsRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SchemaVersion int       `gorm:"not null" json:"schema_version"`
	Payload       string    `gorm:"type:text;not null" json:"payload"`
	UpdatedBy     string    `json:"updated_by,omitempty"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GamificationSettingsRecord) TableName() string { return "gamification_settings" }
