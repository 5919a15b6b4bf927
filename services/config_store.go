package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"sync"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsSchemaVersion is the newest settings document this build understands.
const SettingsSchemaVersion = 1

// DefaultActionKey is the fallback reward for action keys that are not configured.
const DefaultActionKey = "social_share"

// ActionReward is the points value and cooldown of one earning action.
type ActionReward struct {
	Points        int64 `json:"points"`
	CooldownHours int   `json:"cooldown_hours"`
}

// GamificationSettings is the typed gamification configuration.
type GamificationSettings struct {
	SchemaVersion      int                        `json:"schema_version"`
	GamificationPoints map[string]ActionReward    `json:"gamification_points"`
	MaxPointsPerUser   int64                      `json:"max_points_per_user"`
	NFTExchangeActive  bool                       `json:"nft_exchange_active"`
	RequireEthAddress  bool                       `json:"require_eth_address"`
	ClaimRewards       map[models.ClaimType]int64 `json:"claim_rewards"`
}

// DefaultSettings returns the documented default for every key.
func DefaultSettings() GamificationSettings {
	return GamificationSettings{
		SchemaVersion: SettingsSchemaVersion,
		GamificationPoints: map[string]ActionReward{
			"social_share":      {Points: 5, CooldownHours: 24},
			"daily_check_in":    {Points: 10, CooldownHours: 24},
			"referral":          {Points: 50, CooldownHours: 0},
			"newsletter_signup": {Points: 20, CooldownHours: 0},
			"voucher_copy":      {Points: 1, CooldownHours: 1},
			"review_submitted":  {Points: 25, CooldownHours: 168},
		},
		MaxPointsPerUser:  1_000_000_000,
		NFTExchangeActive: false,
		RequireEthAddress: false,
		ClaimRewards: map[models.ClaimType]int64{
			models.ClaimProofOfPurchase: 50_000_000,
		},
	}
}

var actionKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)

// Validate rejects malformed settings instead of defaulting them away.
func (s GamificationSettings) Validate() error {
	if s.SchemaVersion < 1 || s.SchemaVersion > SettingsSchemaVersion {
		return fmt.Errorf("%w: unsupported schema_version %d", ErrInvalidSettings, s.SchemaVersion)
	}
	if s.MaxPointsPerUser <= 0 {
		return fmt.Errorf("%w: max_points_per_user must be positive", ErrInvalidSettings)
	}
	for key, r := range s.GamificationPoints {
		if !actionKeyPattern.MatchString(key) {
			return fmt.Errorf("%w: malformed action key %q", ErrInvalidSettings, key)
		}
		if r.Points < 0 || r.CooldownHours < 0 {
			return fmt.Errorf("%w: %s must have non-negative points and cooldown_hours", ErrInvalidSettings, key)
		}
	}
	for claim, pts := range s.ClaimRewards {
		if !actionKeyPattern.MatchString(string(claim)) {
			return fmt.Errorf("%w: malformed claim type %q", ErrInvalidSettings, claim)
		}
		if pts <= 0 {
			return fmt.Errorf("%w: claim reward %s must be positive", ErrInvalidSettings, claim)
		}
	}
	return nil
}

// ActionKeys lists the configured action keys in a stable order.
func (s GamificationSettings) ActionKeys() []string {
	keys := make([]string, 0, len(s.GamificationPoints))
	for k := range s.GamificationPoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s GamificationSettings) clone() GamificationSettings {
	out := s
	out.GamificationPoints = make(map[string]ActionReward, len(s.GamificationPoints))
	for k, v := range s.GamificationPoints {
		out.GamificationPoints[k] = v
	}
	out.ClaimRewards = make(map[models.ClaimType]int64, len(s.ClaimRewards))
	for k, v := range s.ClaimRewards {
		out.ClaimRewards[k] = v
	}
	return out
}

// DecodeSettings parses a settings document strictly: unknown fields,
// newer schema versions and invalid values are errors. Keys that are
// missing entirely take their documented default.
func DecodeSettings(raw []byte) (GamificationSettings, error) {
	defaults := DefaultSettings()
	s := GamificationSettings{
		SchemaVersion:     defaults.SchemaVersion,
		MaxPointsPerUser:  defaults.MaxPointsPerUser,
		NFTExchangeActive: defaults.NFTExchangeActive,
		RequireEthAddress: defaults.RequireEthAddress,
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return GamificationSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.GamificationPoints == nil {
		s.GamificationPoints = defaults.GamificationPoints
	}
	if s.ClaimRewards == nil {
		s.ClaimRewards = defaults.ClaimRewards
	}
	if err := s.Validate(); err != nil {
		return GamificationSettings{}, err
	}
	return s, nil
}

// ConfigStore caches the gamification settings. Reads never touch the DB;
// Load/Refresh/Update replace the cached copy.
type ConfigStore struct {
	DB *gorm.DB

	mu          sync.RWMutex
	settings    GamificationSettings
	subscribers []func(GamificationSettings)
}

func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{DB: db, settings: DefaultSettings()}
}

// Load reads the settings row, seeding it with defaults when absent.
func (s *ConfigStore) Load(ctx context.Context) (GamificationSettings, error) {
	var rec models.GamificationSettingsRecord
	err := s.DB.WithContext(ctx).First(&rec, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := DefaultSettings()
		if err := s.persist(ctx, def, "system"); err != nil {
			return GamificationSettings{}, err
		}
		s.swap(def)
		utils.LogInfo("⚙️ Gamification settings seeded with defaults (schema v%d)", def.SchemaVersion)
		return def.clone(), nil
	}
	if err != nil {
		return GamificationSettings{}, err
	}

	settings, err := DecodeSettings([]byte(rec.Payload))
	if err != nil {
		return GamificationSettings{}, err
	}
	s.swap(settings)
	return settings.clone(), nil
}

// Refresh reloads the settings from the DB, keeping the cache on failure.
func (s *ConfigStore) Refresh(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

// Settings returns a copy of the cached settings.
func (s *ConfigStore) Settings() GamificationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.clone()
}

// Get returns the reward for an action key, falling back to the social share default.
func (s *ConfigStore) Get(actionKey string) ActionReward {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.settings.GamificationPoints[actionKey]; ok {
		return r
	}
	if r, ok := s.settings.GamificationPoints[DefaultActionKey]; ok {
		return r
	}
	return DefaultSettings().GamificationPoints[DefaultActionKey]
}

// Lookup returns the reward configured for exactly actionKey.
func (s *ConfigStore) Lookup(actionKey string) (ActionReward, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.settings.GamificationPoints[actionKey]
	return r, ok
}

// MaxPointsPerUser is the ledger cap.
func (s *ConfigStore) MaxPointsPerUser() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.MaxPointsPerUser
}

// ClaimReward returns the fixed points value of a redemption claim type.
func (s *ConfigStore) ClaimReward(claim models.ClaimType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts, ok := s.settings.ClaimRewards[claim]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownClaimType, claim)
	}
	return pts, nil
}

// Update is the administrative write path. It validates, persists, swaps
// the cache and notifies subscribers.
func (s *ConfigStore) Update(ctx context.Context, settings GamificationSettings, adminID string) (GamificationSettings, error) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = SettingsSchemaVersion
	}
	if err := settings.Validate(); err != nil {
		return GamificationSettings{}, err
	}
	if err := s.persist(ctx, settings, adminID); err != nil {
		return GamificationSettings{}, err
	}
	s.swap(settings)
	utils.LogInfo("⚙️ Gamification settings updated by %s (%d actions, cap=%d)",
		adminID, len(settings.GamificationPoints), settings.MaxPointsPerUser)
	return settings.clone(), nil
}

// Subscribe registers fn to run after every cache swap.
func (s *ConfigStore) Subscribe(fn func(GamificationSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// swap replaces the cache; subscribers only hear about real changes.
func (s *ConfigStore) swap(settings GamificationSettings) {
	s.mu.Lock()
	if reflect.DeepEqual(s.settings, settings) {
		s.mu.Unlock()
		return
	}
	s.settings = settings.clone()
	subs := append([]func(GamificationSettings){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(settings.clone())
	}
}

func (s *ConfigStore) persist(ctx context.Context, settings GamificationSettings, updatedBy string) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	rec := models.GamificationSettingsRecord{
		ID:            1,
		SchemaVersion: settings.SchemaVersion,
		Payload:       string(payload),
		UpdatedBy:     updatedBy,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "payload", "updated_by", "updated_at"}),
	}).Create(&rec).Error
}
