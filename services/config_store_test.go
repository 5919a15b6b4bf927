package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/stretchr/testify/require"
)

func TestDecodeSettingsDefaultsMissingKeys(t *testing.T) {
	s, err := DecodeSettings([]byte(`{"schema_version":1,"max_points_per_user":5000}`))
	require.NoError(t, err)
	require.Equal(t, int64(5000), s.MaxPointsPerUser)
	require.Equal(t, ActionReward{Points: 5, CooldownHours: 24}, s.GamificationPoints["social_share"])
	require.Equal(t, int64(50_000_000), s.ClaimRewards[models.ClaimProofOfPurchase])
	require.False(t, s.NFTExchangeActive)
}

func TestDecodeSettingsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"unknown field":     `{"schema_version":1,"bonus_multiplier":2}`,
		"newer schema":      `{"schema_version":2}`,
		"negative points":   `{"gamification_points":{"social_share":{"points":-1,"cooldown_hours":24}}}`,
		"negative cooldown": `{"gamification_points":{"social_share":{"points":1,"cooldown_hours":-2}}}`,
		"zero cap":          `{"max_points_per_user":0}`,
		"bad action key":    `{"gamification_points":{"Social Share":{"points":1,"cooldown_hours":0}}}`,
		"zero claim":        `{"claim_rewards":{"proof_of_purchase":0}}`,
		"not json":          `points=5`,
		"wrong type":        `{"max_points_per_user":"lots"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSettings([]byte(raw))
			require.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestConfigStoreGetFallsBackToSocialShare(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, ActionReward{Points: 10, CooldownHours: 24}, f.config.Get("daily_check_in"))
	require.Equal(t, ActionReward{Points: 5, CooldownHours: 24}, f.config.Get("share_linkedin"))
}

func TestConfigStoreUpdatePersistsAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var notified []GamificationSettings
	f.config.Subscribe(func(s GamificationSettings) { notified = append(notified, s) })

	s := f.config.Settings()
	s.GamificationPoints["newsletter_signup"] = ActionReward{Points: 40}
	_, err := f.config.Update(ctx, s, "admin-1")
	require.NoError(t, err)
	require.Len(t, notified, 1)
	require.Equal(t, int64(40), notified[0].GamificationPoints["newsletter_signup"].Points)

	// an identical update is not a change
	_, err = f.config.Update(ctx, s, "admin-1")
	require.NoError(t, err)
	require.Len(t, notified, 1)

	var rec models.GamificationSettingsRecord
	require.NoError(t, f.db.First(&rec, 1).Error)
	require.Equal(t, "admin-1", rec.UpdatedBy)
	require.Equal(t, SettingsSchemaVersion, rec.SchemaVersion)

	// a fresh store sees the persisted document
	other := NewConfigStore(f.db)
	loaded, err := other.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(40), loaded.GamificationPoints["newsletter_signup"].Points)
}

func TestConfigStoreUpdateRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	s := f.config.Settings()
	s.MaxPointsPerUser = -1
	_, err := f.config.Update(context.Background(), s, "admin-1")
	require.ErrorIs(t, err, ErrInvalidSettings)
	require.Equal(t, int64(1_000_000_000), f.config.MaxPointsPerUser())
}

func TestConfigStoreRefreshPicksUpExternalWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := DefaultSettings()
	s.MaxPointsPerUser = 777
	payload, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.GamificationSettingsRecord{}).
		Where("id = ?", 1).
		Update("payload", string(payload)).Error)

	require.Equal(t, int64(1_000_000_000), f.config.MaxPointsPerUser())
	require.NoError(t, f.config.Refresh(ctx))
	require.Equal(t, int64(777), f.config.MaxPointsPerUser())

	// a corrupt row keeps the cached copy
	require.NoError(t, f.db.Model(&models.GamificationSettingsRecord{}).
		Where("id = ?", 1).
		Update("payload", `{"surprise":true}`).Error)
	require.ErrorIs(t, f.config.Refresh(ctx), ErrInvalidSettings)
	require.Equal(t, int64(777), f.config.MaxPointsPerUser())
}
