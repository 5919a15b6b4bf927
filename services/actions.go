package services

import (
	"context"
	"errors"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"gorm.io/gorm"
)

// ActionService awards the configured per-action rewards
// (gamification_points) that are not catalog tasks, like voucher copies
// or review submissions triggered by the storefront.
type ActionService struct {
	DB     *gorm.DB
	Config *ConfigStore
	Ledger *PointLedger
	Guard  *CooldownGuard
}

func NewActionService(db *gorm.DB, config *ConfigStore, ledger *PointLedger, guard *CooldownGuard) *ActionService {
	return &ActionService{DB: db, Config: config, Ledger: ledger, Guard: guard}
}

// resolveAction maps a requested key onto the key whose reward and
// cooldown apply. Unconfigured keys all collapse onto DefaultActionKey so
// they share one cooldown record.
func (s *ActionService) resolveAction(actionKey string) (string, ActionReward) {
	if r, ok := s.Config.Lookup(actionKey); ok {
		return actionKey, r
	}
	return DefaultActionKey, s.Config.Get(DefaultActionKey)
}

// Perform credits the reward configured for actionKey, gated by its cooldown.
// Unknown keys earn the social_share reward under the social_share cooldown.
// When the resolved key has a catalog row, the row's enabled flag, points
// and cooldown win over the settings.
func (s *ActionService) Perform(ctx context.Context, actorID, actionKey string, now time.Time) (CompletionResult, error) {
	if err := validActorID(actorID); err != nil {
		return CompletionResult{}, err
	}
	if !actionKeyPattern.MatchString(actionKey) {
		return CompletionResult{}, ErrTaskUnavailable
	}
	key, reward := s.resolveAction(actionKey)
	points := reward.Points
	cooldown := time.Duration(reward.CooldownHours) * time.Hour
	now = now.UTC()

	var out CompletionResult
	err := runInTx(ctx, s.DB, "action.perform", func(tx *gorm.DB) error {
		var tasks []models.MiningTask
		if err := tx.Where("id = ?", key).Limit(1).Find(&tasks).Error; err != nil {
			return err
		}
		points, cooldown := points, cooldown
		if len(tasks) == 1 {
			if !tasks[0].Enabled {
				return ErrTaskUnavailable
			}
			points, cooldown = tasks[0].Points, tasks[0].Cooldown()
		}

		var err error
		out, err = earn(tx, s.Guard, s.Ledger, actorID, key, points, cooldown,
			models.ReasonAction, now)
		return err
	})
	if err != nil {
		var cd *CooldownError
		if errors.As(err, &cd) {
			metricCooldownDenials.WithLabelValues("action").Inc()
		}
		return CompletionResult{}, err
	}
	metricEarnings.WithLabelValues("action").Inc()
	s.Ledger.observe(out.Credit, models.ReasonAction, key)
	return out, nil
}
