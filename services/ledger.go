package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditResult reports what a balance change actually did. Credits beyond
// max_points_per_user are clamped, not rejected; Capped and Applied make the
// clamp visible to the caller.
type CreditResult struct {
	ActorID   string `json:"actor_id"`
	Requested int64  `json:"requested"`
	Applied   int64  `json:"applied"`
	Balance   int64  `json:"balance"`
	Capped    bool   `json:"capped"`
}

// PointLedger is the authoritative balance store.
type PointLedger struct {
	DB     *gorm.DB
	Config *ConfigStore
	Now    func() time.Time
}

func NewPointLedger(db *gorm.DB, config *ConfigStore) *PointLedger {
	return &PointLedger{DB: db, Config: config, Now: time.Now}
}

// Credit adds amount (> 0) to the actor's balance, bounded by the cap.
func (l *PointLedger) Credit(ctx context.Context, actorID string, amount int64, reason models.LedgerReason, reference string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	var out CreditResult
	err := runInTx(ctx, l.DB, "ledger.credit", func(tx *gorm.DB) error {
		var err error
		out, err = l.CreditTx(tx, actorID, amount, reason, reference, l.Now().UTC())
		return err
	})
	if err != nil {
		return CreditResult{}, err
	}
	l.observe(out, reason, reference)
	return out, nil
}

// Debit removes amount (> 0) from the actor's balance, floored at zero.
func (l *PointLedger) Debit(ctx context.Context, actorID string, amount int64, reason models.LedgerReason, reference string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	var out CreditResult
	err := runInTx(ctx, l.DB, "ledger.debit", func(tx *gorm.DB) error {
		var err error
		out, err = l.applyDelta(tx, actorID, -amount, reason, reference, l.Now().UTC())
		return err
	})
	if err != nil {
		return CreditResult{}, err
	}
	l.observe(out, reason, reference)
	return out, nil
}

// CreditTx is Credit for callers that already hold a transaction, so the
// credit commits or rolls back together with their own writes.
// A zero amount only refreshes last_active. Callers pass the result to
// observe once their transaction has committed.
func (l *PointLedger) CreditTx(tx *gorm.DB, actorID string, amount int64, reason models.LedgerReason, reference string, now time.Time) (CreditResult, error) {
	if amount < 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	return l.applyDelta(tx, actorID, amount, reason, reference, now)
}

// GetBalance returns the current balance, provisioning unknown actors at zero.
func (l *PointLedger) GetBalance(ctx context.Context, actorID string) (int64, error) {
	actor, err := l.GetActor(ctx, actorID)
	if err != nil {
		return 0, err
	}
	return actor.Points, nil
}

// GetActor loads the actor row, provisioning it on first contact.
func (l *PointLedger) GetActor(ctx context.Context, actorID string) (*models.GamificationActor, error) {
	if err := validActorID(actorID); err != nil {
		return nil, err
	}
	var actor models.GamificationActor
	err := runInTx(ctx, l.DB, "ledger.get_actor", func(tx *gorm.DB) error {
		if err := ensureActor(tx, actorID, l.Now().UTC()); err != nil {
			return err
		}
		return tx.Where("id = ?", actorID).First(&actor).Error
	})
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// ListLedger returns the newest ledger entries of an actor.
func (l *PointLedger) ListLedger(ctx context.Context, actorID string, limit int) ([]models.PointLedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.PointLedgerEntry
	err := l.DB.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// applyDelta locks the actor row and moves the balance with one server-side
// expression, so concurrent changes for the same actor serialize instead of
// overwriting each other. Credits never push past the cap and never lower a
// balance that already sits above a reduced cap; debits floor at zero.
func (l *PointLedger) applyDelta(tx *gorm.DB, actorID string, delta int64, reason models.LedgerReason, reference string, now time.Time) (CreditResult, error) {
	if err := validActorID(actorID); err != nil {
		return CreditResult{}, err
	}
	if err := ensureActor(tx, actorID, now); err != nil {
		return CreditResult{}, err
	}

	var before models.GamificationActor
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "points").
		Where("id = ?", actorID).
		First(&before).Error; err != nil {
		return CreditResult{}, err
	}

	maxPoints := l.Config.MaxPointsPerUser()
	var expr clause.Expr
	if delta >= 0 {
		expr = gorm.Expr("CASE WHEN points >= ? THEN points WHEN points + ? > ? THEN ? ELSE points + ? END",
			maxPoints, delta, maxPoints, maxPoints, delta)
	} else {
		expr = gorm.Expr("CASE WHEN points + ? < 0 THEN 0 ELSE points + ? END", delta, delta)
	}
	if err := tx.Model(&models.GamificationActor{}).
		Where("id = ?", actorID).
		Updates(map[string]interface{}{
			"points":      expr,
			"last_active": now,
		}).Error; err != nil {
		return CreditResult{}, err
	}

	var after models.GamificationActor
	if err := tx.Select("id", "points").Where("id = ?", actorID).First(&after).Error; err != nil {
		return CreditResult{}, err
	}

	result := CreditResult{
		ActorID:   actorID,
		Requested: delta,
		Applied:   after.Points - before.Points,
		Balance:   after.Points,
	}
	result.Capped = delta > 0 && result.Applied < delta

	if delta == 0 {
		return result, nil
	}

	entry := models.PointLedgerEntry{
		ID:           uuid.NewString(),
		ActorID:      actorID,
		Requested:    delta,
		Applied:      result.Applied,
		BalanceAfter: result.Balance,
		Reason:       reason,
		Reference:    truncate(reference, 255),
		CreatedAt:    now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return CreditResult{}, err
	}
	return result, nil
}

// observe emits the metrics and log line of a committed balance change.
func (l *PointLedger) observe(res CreditResult, reason models.LedgerReason, reference string) {
	switch {
	case res.Requested > 0:
		metricPointsCredited.WithLabelValues(string(reason)).Add(float64(res.Applied))
		if res.Capped {
			metricCapClamps.Inc()
			utils.LogWarn("🧢 Cap reached for %s: requested %d, applied %d", res.ActorID, res.Requested, res.Applied)
		}
		utils.LogInfo("🎮 Points credited: %s +%d → %d (reason: %s %s)", res.ActorID, res.Applied, res.Balance, reason, reference)
	case res.Requested < 0:
		metricPointsDebited.WithLabelValues(string(reason)).Add(float64(-res.Applied))
		utils.LogInfo("🎮 Points debited: %s %d → %d (reason: %s %s)", res.ActorID, res.Applied, res.Balance, reason, reference)
	}
}

// ensureActor provisions a zero-balance actor row (idempotent).
func ensureActor(tx *gorm.DB, actorID string, now time.Time) error {
	actor := models.GamificationActor{ID: actorID, LastActive: now}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&actor).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return nil
}

// truncate keeps at most n characters of s, cutting on a rune boundary.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
