package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is the evidence an actor sends with a redemption claim.
type Submission struct {
	ClaimType   models.ClaimType `json:"claim_type"`
	FullName    string           `json:"full_name"`
	Email       string           `json:"email"`
	Contact     string           `json:"contact"`
	EvidenceURL string           `json:"evidence_url"`
}

// RedemptionWorkflow runs the claim -> review -> award state machine.
type RedemptionWorkflow struct {
	DB     *gorm.DB
	Config *ConfigStore
	Ledger *PointLedger
	Now    func() time.Time
}

func NewRedemptionWorkflow(db *gorm.DB, config *ConfigStore, ledger *PointLedger) *RedemptionWorkflow {
	return &RedemptionWorkflow{DB: db, Config: config, Ledger: ledger, Now: time.Now}
}

// Submit records a pending claim. The points value comes from the configured
// claim_rewards entry at submission time, never from the request body.
// Resubmissions are allowed and each request is decided on its own.
func (w *RedemptionWorkflow) Submit(ctx context.Context, actorID string, sub Submission) (*models.RedemptionRequest, error) {
	if err := validActorID(actorID); err != nil {
		return nil, err
	}
	if sub.ClaimType == "" {
		sub.ClaimType = models.ClaimProofOfPurchase
	}
	if strings.TrimSpace(sub.EvidenceURL) == "" {
		return nil, ErrMissingEvidence
	}
	if sub.Email != "" {
		if _, err := mail.ParseAddress(sub.Email); err != nil {
			return nil, ErrInvalidEmail
		}
	}
	points, err := w.Config.ClaimReward(sub.ClaimType)
	if err != nil {
		return nil, err
	}

	now := w.Now().UTC()
	req := &models.RedemptionRequest{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		ClaimType:     sub.ClaimType,
		FullName:      strings.TrimSpace(sub.FullName),
		Email:         strings.TrimSpace(sub.Email),
		Contact:       strings.TrimSpace(sub.Contact),
		EvidenceURL:   strings.TrimSpace(sub.EvidenceURL),
		Status:        models.RedemptionPending,
		PointsAwarded: points,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}

	err = runInTx(ctx, w.DB, "redemption.submit", func(tx *gorm.DB) error {
		if err := ensureActor(tx, actorID, now); err != nil {
			return err
		}
		return tx.Create(req).Error
	})
	if err != nil {
		return nil, err
	}

	metricRedemptions.WithLabelValues("submitted").Inc()
	utils.LogInfo("🧾 Redemption submitted: %s by %s (%s, %d pts)", req.ID, actorID, req.ClaimType, points)
	return req, nil
}

// Approve moves a pending request to approved and credits its points in
// the same transaction. The status change is conditional on the row still
// being pending, so a request is credited at most once no matter how many
// approvals race.
func (w *RedemptionWorkflow) Approve(ctx context.Context, requestID, adminID string) (*models.RedemptionRequest, CreditResult, error) {
	now := w.Now().UTC()
	var (
		req    models.RedemptionRequest
		credit CreditResult
	)
	err := runInTx(ctx, w.DB, "redemption.approve", func(tx *gorm.DB) error {
		res := tx.Model(&models.RedemptionRequest{}).
			Where("id = ? AND status = ?", requestID, models.RedemptionPending).
			Updates(map[string]interface{}{
				"status":      models.RedemptionApproved,
				"approved_by": adminID,
				"approved_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return decidedOrMissing(tx, requestID)
		}

		if err := tx.Where("id = ?", requestID).First(&req).Error; err != nil {
			return err
		}
		var err error
		credit, err = w.Ledger.CreditTx(tx, req.ActorID, req.PointsAwarded, models.ReasonRedemption, req.ID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			metricRedemptions.WithLabelValues("already_decided").Inc()
			utils.LogWarn("🔁 Redemption %s already decided, approval by %s ignored", requestID, adminID)
		}
		return nil, CreditResult{}, err
	}

	metricRedemptions.WithLabelValues("approved").Inc()
	w.Ledger.observe(credit, models.ReasonRedemption, req.ID)
	utils.LogInfo("✅ Redemption approved: %s by %s → %s +%d", req.ID, adminID, req.ActorID, credit.Applied)
	return &req, credit, nil
}

// Reject closes a pending request without touching the ledger.
func (w *RedemptionWorkflow) Reject(ctx context.Context, requestID, adminID, notes string) (*models.RedemptionRequest, error) {
	now := w.Now().UTC()
	var req models.RedemptionRequest
	err := runInTx(ctx, w.DB, "redemption.reject", func(tx *gorm.DB) error {
		res := tx.Model(&models.RedemptionRequest{}).
			Where("id = ? AND status = ?", requestID, models.RedemptionPending).
			Updates(map[string]interface{}{
				"status":      models.RedemptionRejected,
				"approved_by": adminID,
				"admin_notes": notes,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return decidedOrMissing(tx, requestID)
		}
		return tx.Where("id = ?", requestID).First(&req).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			metricRedemptions.WithLabelValues("already_decided").Inc()
		}
		return nil, err
	}

	metricRedemptions.WithLabelValues("rejected").Inc()
	utils.LogInfo("🚫 Redemption rejected: %s by %s", req.ID, adminID)
	return &req, nil
}

// Get returns one request.
func (w *RedemptionWorkflow) Get(ctx context.Context, requestID string) (*models.RedemptionRequest, error) {
	var req models.RedemptionRequest
	if err := w.DB.WithContext(ctx).Where("id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}
	return &req, nil
}

// List returns requests, newest first, optionally filtered by status.
func (w *RedemptionWorkflow) List(ctx context.Context, status models.RedemptionStatus) ([]models.RedemptionRequest, error) {
	q := w.DB.WithContext(ctx).Order("submitted_at DESC")
	if status != "" {
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}
	var out []models.RedemptionRequest
	err := q.Find(&out).Error
	return out, err
}

// ListForActor returns the requests an actor submitted.
func (w *RedemptionWorkflow) ListForActor(ctx context.Context, actorID string) ([]models.RedemptionRequest, error) {
	var out []models.RedemptionRequest
	err := w.DB.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("submitted_at DESC").
		Find(&out).Error
	return out, err
}

// CountPending feeds the pending redemptions gauge.
func (w *RedemptionWorkflow) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := w.DB.WithContext(ctx).Model(&models.RedemptionRequest{}).
		Where("status = ?", models.RedemptionPending).
		Count(&n).Error
	return n, err
}

func decidedOrMissing(tx *gorm.DB, requestID string) error {
	var n int64
	if err := tx.Model(&models.RedemptionRequest{}).Where("id = ?", requestID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrRedemptionNotFound
	}
	return ErrAlreadyDecided
}
