package models

import "time"

// RedemptionStatus is the review state of a high-value claim.
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// Valid reports whether s is one of the known states.
func (s RedemptionStatus) Valid() bool {
	switch s {
	case RedemptionPending, RedemptionApproved, RedemptionRejected:
		return true
	}
	return false
}

// ClaimType selects the reward definition a redemption is paid from.
type ClaimType string

const ClaimProofOfPurchase ClaimType = "proof_of_purchase"

// RedemptionRequest is a manually reviewed claim (e.g. "prove hosting purchase").
// PointsAwarded is fixed at submission and credited at most once, on pending -> approved.
type RedemptionRequest struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ActorID   string    `gorm:"type:varchar(128);not null;index" json:"actor_id"`
	ClaimType ClaimType `gorm:"type:varchar(64);not null" json:"claim_type"`

	// Contact data is for the reviewer only; the award always targets ActorID.
	FullName string `json:"full_name"`
	Email    string `gorm:"index" json:"email"`
	Contact  string `json:"contact,omitempty"`

	EvidenceURL   string           `gorm:"type:text;not null" json:"evidence_url"`
	Status        RedemptionStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PointsAwarded int64            `gorm:"not null" json:"points_awarded"`
	AdminNotes    string           `gorm:"type:text" json:"admin_notes,omitempty"`
	ApprovedBy    *string          `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time       `json:"approved_at,omitempty"`
	SubmittedAt   time.Time        `gorm:"not null" json:"submitted_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
