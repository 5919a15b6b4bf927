package services

import (
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CooldownDecision is the outcome of a cooldown check.
type CooldownDecision struct {
	Allowed    bool          `json:"allowed"`
	RetryAfter time.Duration `json:"retry_after"`
}

// EvaluateCooldown is the pure rule: allowed when there is no previous use,
// when the cooldown is zero, or when now >= last + cooldown.
func EvaluateCooldown(last *time.Time, cooldown time.Duration, now time.Time) CooldownDecision {
	if last == nil || cooldown <= 0 {
		return CooldownDecision{Allowed: true}
	}
	next := last.Add(cooldown)
	if !now.Before(next) {
		return CooldownDecision{Allowed: true}
	}
	return CooldownDecision{Allowed: false, RetryAfter: next.Sub(now)}
}

// CooldownGuard gates repeatable earning actions per (actor, action key).
type CooldownGuard struct{}

func NewCooldownGuard() *CooldownGuard {
	return &CooldownGuard{}
}

// TryConsume checks and records a use in one step inside tx. The timestamp
// is only written when the action is allowed: first use is an
// INSERT ... ON CONFLICT DO NOTHING, later uses are a conditional UPDATE, and
// the affected-row count decides. Concurrent callers cannot both pass.
func (g *CooldownGuard) TryConsume(tx *gorm.DB, actorID, actionKey string, cooldown time.Duration, now time.Time) (CooldownDecision, error) {
	nowNs := now.UnixNano()

	first := models.CooldownRecord{
		ActorID:         actorID,
		ActionKey:       actionKey,
		LastTriggeredNs: nowNs,
		TriggerCount:    1,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&first)
	if res.Error != nil {
		return CooldownDecision{}, res.Error
	}
	if res.RowsAffected == 1 {
		return CooldownDecision{Allowed: true}, nil
	}

	q := tx.Model(&models.CooldownRecord{}).
		Where("actor_id = ? AND action_key = ?", actorID, actionKey)
	if cooldown > 0 {
		q = q.Where("last_triggered_ns <= ?", now.Add(-cooldown).UnixNano())
	}
	res = q.Updates(map[string]interface{}{
		"last_triggered_ns": nowNs,
		"trigger_count":     gorm.Expr("trigger_count + 1"),
	})
	if res.Error != nil {
		return CooldownDecision{}, res.Error
	}
	if res.RowsAffected == 1 {
		return CooldownDecision{Allowed: true}, nil
	}

	var current models.CooldownRecord
	if err := tx.Where("actor_id = ? AND action_key = ?", actorID, actionKey).
		First(&current).Error; err != nil {
		return CooldownDecision{}, err
	}
	last := current.LastTriggeredAt()
	decision := EvaluateCooldown(&last, cooldown, now)
	decision.Allowed = false
	return decision, nil
}

// Peek reports the decision without recording anything.
func (g *CooldownGuard) Peek(db *gorm.DB, actorID, actionKey string, cooldown time.Duration, now time.Time) (CooldownDecision, error) {
	var rec models.CooldownRecord
	err := db.Where("actor_id = ? AND action_key = ?", actorID, actionKey).Limit(1).Find(&rec).Error
	if err != nil {
		return CooldownDecision{}, err
	}
	if rec.ActorID == "" {
		return EvaluateCooldown(nil, cooldown, now), nil
	}
	last := rec.LastTriggeredAt()
	return EvaluateCooldown(&last, cooldown, now), nil
}
