package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionResult is the outcome of an allowed earning action.
type CompletionResult struct {
	TaskID      string       `json:"task_id"`
	Credit      CreditResult `json:"credit"`
	NextAllowed *time.Time   `json:"next_allowed_at,omitempty"`
}

// TaskAvailability pairs a task with the actor's cooldown state.
type TaskAvailability struct {
	models.MiningTask
	Available  bool          `json:"available"`
	RetryAfter time.Duration `json:"retry_after"`
}

// MiningTaskCatalog owns the point-valued tasks and their completion flow.
type MiningTaskCatalog struct {
	DB     *gorm.DB
	Ledger *PointLedger
	Guard  *CooldownGuard
	Now    func() time.Time
}

func NewMiningTaskCatalog(db *gorm.DB, ledger *PointLedger, guard *CooldownGuard) *MiningTaskCatalog {
	return &MiningTaskCatalog{DB: db, Ledger: ledger, Guard: guard, Now: time.Now}
}

// ListEnabled returns enabled tasks in display order.
func (c *MiningTaskCatalog) ListEnabled(ctx context.Context) ([]models.MiningTask, error) {
	var tasks []models.MiningTask
	err := c.DB.WithContext(ctx).
		Where("enabled = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListAll returns every task, including disabled ones (admin view).
func (c *MiningTaskCatalog) ListAll(ctx context.Context) ([]models.MiningTask, error) {
	var tasks []models.MiningTask
	err := c.DB.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&tasks).Error
	return tasks, err
}

// ListForActor returns enabled tasks with the actor's cooldown state.
func (c *MiningTaskCatalog) ListForActor(ctx context.Context, actorID string) ([]TaskAvailability, error) {
	tasks, err := c.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	now := c.Now().UTC()
	out := make([]TaskAvailability, 0, len(tasks))
	for _, t := range tasks {
		d, err := c.Guard.Peek(c.DB.WithContext(ctx), actorID, t.ID, t.Cooldown(), now)
		if err != nil {
			return nil, err
		}
		out = append(out, TaskAvailability{MiningTask: t, Available: d.Allowed, RetryAfter: d.RetryAfter})
	}
	return out, nil
}

// Get returns a single task regardless of its enabled flag.
func (c *MiningTaskCatalog) Get(ctx context.Context, taskID string) (*models.MiningTask, error) {
	var task models.MiningTask
	if err := c.DB.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskUnavailable
		}
		return nil, err
	}
	return &task, nil
}

// Complete runs one task completion: availability check, cooldown consume
// and ledger credit happen in a single transaction, so either all of them
// land or none do.
func (c *MiningTaskCatalog) Complete(ctx context.Context, actorID, taskID string, now time.Time) (CompletionResult, error) {
	if err := validActorID(actorID); err != nil {
		return CompletionResult{}, err
	}
	now = now.UTC()

	var out CompletionResult
	err := runInTx(ctx, c.DB, "catalog.complete", func(tx *gorm.DB) error {
		var task models.MiningTask
		if err := tx.Where("id = ? AND enabled = ?", taskID, true).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskUnavailable
			}
			return err
		}

		var err error
		out, err = earn(tx, c.Guard, c.Ledger, actorID, task.ID, task.Points, task.Cooldown(),
			models.ReasonTask, now)
		return err
	})
	if err != nil {
		var cd *CooldownError
		if errors.As(err, &cd) {
			metricCooldownDenials.WithLabelValues("task").Inc()
		}
		return CompletionResult{}, err
	}
	metricEarnings.WithLabelValues("task").Inc()
	c.Ledger.observe(out.Credit, models.ReasonTask, out.TaskID)
	return out, nil
}

// earn is the shared cooldown + credit step. It must run inside tx.
func earn(tx *gorm.DB, guard *CooldownGuard, ledger *PointLedger, actorID, actionKey string,
	points int64, cooldown time.Duration, reason models.LedgerReason, now time.Time) (CompletionResult, error) {
	// The actor row is locked before the cooldown row so that every write
	// path takes locks in the same order.
	if err := ensureActor(tx, actorID, now); err != nil {
		return CompletionResult{}, err
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", actorID).
		First(&models.GamificationActor{}).Error; err != nil {
		return CompletionResult{}, err
	}

	decision, err := guard.TryConsume(tx, actorID, actionKey, cooldown, now)
	if err != nil {
		return CompletionResult{}, err
	}
	if !decision.Allowed {
		utils.LogDebug("⏳ Cooldown active: %s/%s retry in %s", actorID, actionKey, decision.RetryAfter)
		return CompletionResult{}, &CooldownError{ActionKey: actionKey, RetryAfter: decision.RetryAfter}
	}

	credit, err := ledger.CreditTx(tx, actorID, points, reason, actionKey, now)
	if err != nil {
		return CompletionResult{}, err
	}

	out := CompletionResult{TaskID: actionKey, Credit: credit}
	if cooldown > 0 {
		next := now.Add(cooldown)
		out.NextAllowed = &next
	}
	return out, nil
}

// TaskInput is the admin payload for creating or editing a task.
type TaskInput struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Points        int64           `json:"points"`
	Enabled       *bool           `json:"enabled"`
	CooldownHours int             `json:"cooldown_hours"`
	TaskType      models.TaskType `json:"task_type"`
	Requirements  []string        `json:"requirements"`
	SortOrder     int             `json:"sort_order"`
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if in.Points < 0 {
		return fmt.Errorf("%w: points must be non-negative", ErrInvalidTask)
	}
	if in.CooldownHours < 0 {
		return fmt.Errorf("%w: cooldown_hours must be non-negative", ErrInvalidTask)
	}
	return nil
}

// CreateTask adds a task. Without an explicit id the id is the slug of the title.
func (c *MiningTaskCatalog) CreateTask(ctx context.Context, in TaskInput) (*models.MiningTask, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = slug.Make(in.Title)
	}
	if !actionKeyPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: invalid task id %q", ErrInvalidTask, id)
	}

	task := models.MiningTask{
		ID:            id,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Points:        in.Points,
		Enabled:       in.Enabled == nil || *in.Enabled,
		CooldownHours: in.CooldownHours,
		TaskType:      normalizeTaskType(in.TaskType),
		Requirements:  in.Requirements,
		SortOrder:     in.SortOrder,
	}
	if task.Requirements == nil {
		task.Requirements = []string{}
	}
	// Enabled is written explicitly; a zero-value bool would fall back to the column default.
	if err := c.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	if !task.Enabled {
		if err := c.DB.WithContext(ctx).Model(&task).Update("enabled", false).Error; err != nil {
			return nil, err
		}
	}
	utils.LogInfo("⛏️ Mining task created: %s (%d pts, %dh cooldown)", task.ID, task.Points, task.CooldownHours)
	return &task, nil
}

// UpdateTask replaces the editable fields of a task.
func (c *MiningTaskCatalog) UpdateTask(ctx context.Context, taskID string, in TaskInput) (*models.MiningTask, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	task, err := c.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"title":          strings.TrimSpace(in.Title),
		"description":    in.Description,
		"points":         in.Points,
		"cooldown_hours": in.CooldownHours,
		"task_type":      normalizeTaskType(in.TaskType),
		"sort_order":     in.SortOrder,
	}
	if in.Enabled != nil {
		updates["enabled"] = *in.Enabled
	}
	reqs := in.Requirements
	if reqs == nil {
		reqs = []string{}
	}
	if err := c.DB.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := c.DB.WithContext(ctx).Model(task).Select("requirements").
		Updates(models.MiningTask{Requirements: reqs}).Error; err != nil {
		return nil, err
	}
	return c.Get(ctx, taskID)
}

// SetEnabled toggles a task on or off.
func (c *MiningTaskCatalog) SetEnabled(ctx context.Context, taskID string, enabled bool) error {
	res := c.DB.WithContext(ctx).Model(&models.MiningTask{}).Where("id = ?", taskID).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskUnavailable
	}
	utils.LogInfo("⛏️ Mining task %s enabled=%t", taskID, enabled)
	return nil
}

// SyncFromSettings keeps a catalog row for every configured action key.
// Points and cooldown follow the settings; title, enabled flag and
// requirements stay under admin control once the row exists.
func (c *MiningTaskCatalog) SyncFromSettings(ctx context.Context, settings GamificationSettings) error {
	titler := cases.Title(language.English)
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, key := range settings.ActionKeys() {
			r := settings.GamificationPoints[key]
			task := models.MiningTask{
				ID:            key,
				Title:         titler.String(strings.NewReplacer("_", " ", "-", " ").Replace(key)),
				Points:        r.Points,
				Enabled:       true,
				CooldownHours: r.CooldownHours,
				TaskType:      taskTypeForKey(key),
				Requirements:  []string{},
				SortOrder:     i,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"points", "cooldown_hours", "updated_at"}),
			}).Create(&task).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func normalizeTaskType(t models.TaskType) models.TaskType {
	switch t {
	case models.TaskTypeSocialShare, models.TaskTypeCheckIn, models.TaskTypeReferral, models.TaskTypeEngagement:
		return t
	}
	return models.TaskTypeOther
}

func taskTypeForKey(key string) models.TaskType {
	switch {
	case strings.HasPrefix(key, "social_share"):
		return models.TaskTypeSocialShare
	case strings.HasPrefix(key, "daily_check_in"):
		return models.TaskTypeCheckIn
	case strings.HasPrefix(key, "referral"):
		return models.TaskTypeReferral
	}
	return models.TaskTypeEngagement
}
