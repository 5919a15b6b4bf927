package models

import "time"

// GamificationActor is one visitor or user accumulating points.
// Identified by the opaque id persisted on the client; no login required.
type GamificationActor struct {
	ID     string `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Points int64  `gorm:"not null;default:0" json:"points"` // 0 <= points <= max_points_per_user

	// Badge is derived from Points on every read and never stored.
	Badge string `gorm:"-" json:"badge"`

	NFTClaimed   bool       `gorm:"not null;default:false" json:"nft_claimed"`
	NFTAwardedAt *time.Time `json:"nft_awarded_at,omitempty"`
	EthAddress   *string    `gorm:"type:varchar(42)" json:"eth_address,omitempty"`

	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
