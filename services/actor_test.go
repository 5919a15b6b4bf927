package services

import (
	"context"
	"testing"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/stretchr/testify/require"
)

func TestAwardNftIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withSettings(t, func(s *GamificationSettings) { s.NFTExchangeActive = true })

	f.actors.Now = func() time.Time { return t0 }
	first, err := f.actors.AwardNft(ctx, "actor-1")
	require.NoError(t, err)
	require.True(t, first.Awarded)
	require.True(t, first.State.NFTClaimed)
	require.NotNil(t, first.State.NFTAwardedAt)

	f.actors.Now = func() time.Time { return t0.Add(time.Hour) }
	second, err := f.actors.AwardNft(ctx, "actor-1")
	require.NoError(t, err)
	require.False(t, second.Awarded)
	require.True(t, second.State.NFTClaimed)
	require.True(t, first.State.NFTAwardedAt.Equal(*second.State.NFTAwardedAt))
}

func TestAwardNftGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.actors.AwardNft(ctx, "actor-1")
	require.ErrorIs(t, err, ErrNFTExchangeInactive)

	f.withSettings(t, func(s *GamificationSettings) {
		s.NFTExchangeActive = true
		s.RequireEthAddress = true
	})
	_, err = f.actors.AwardNft(ctx, "actor-1")
	require.ErrorIs(t, err, ErrEthAddressRequired)

	_, err = f.actors.SetEthAddress(ctx, "actor-1", "0x1234")
	require.ErrorIs(t, err, ErrInvalidEthAddress)

	state, err := f.actors.SetEthAddress(ctx, "actor-1", "0x52908400098527886E0F7030069857D2E4169EE7")
	require.NoError(t, err)
	require.NotNil(t, state.EthAddress)

	res, err := f.actors.AwardNft(ctx, "actor-1")
	require.NoError(t, err)
	require.True(t, res.Awarded)
}

func TestAdjustPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.actors.AdjustPoints(ctx, "actor-1", 100, "welcome bonus")
	require.NoError(t, err)
	require.Equal(t, int64(100), res.Balance)

	res, err = f.actors.AdjustPoints(ctx, "actor-1", -30, "correction")
	require.NoError(t, err)
	require.Equal(t, int64(70), res.Balance)

	res, err = f.actors.AdjustPoints(ctx, "actor-1", -1_000, "reset")
	require.NoError(t, err)
	require.Equal(t, int64(-70), res.Applied)
	require.Zero(t, res.Balance)

	_, err = f.actors.AdjustPoints(ctx, "actor-1", 0, "noop")
	require.ErrorIs(t, err, ErrInvalidAmount)

	entries, err := f.ledger.ListLedger(ctx, "actor-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.Equal(t, models.ReasonAdjustment, e.Reason)
	}
}

func TestGetStateDerivesBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.actors.GetState(ctx, "visitor-1")
	require.NoError(t, err)
	require.Zero(t, state.Points)
	require.Equal(t, "Newcomer", state.Badge)
	require.False(t, state.NFTClaimed)

	_, err = f.actors.AdjustPoints(ctx, "visitor-1", 100, "")
	require.NoError(t, err)
	state, err = f.actors.GetState(ctx, "visitor-1")
	require.NoError(t, err)
	require.Equal(t, "Bronze", state.Badge)
	require.Equal(t, "Silver", state.Tier.Next.Name)
}

func TestAwardNftRepeatAfterExchangeClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withSettings(t, func(s *GamificationSettings) { s.NFTExchangeActive = true })

	first, err := f.actors.AwardNft(ctx, "actor-1")
	require.NoError(t, err)
	require.True(t, first.Awarded)

	f.withSettings(t, func(s *GamificationSettings) { s.NFTExchangeActive = false })

	again, err := f.actors.AwardNft(ctx, "actor-1")
	require.NoError(t, err)
	require.False(t, again.Awarded)
	require.True(t, again.State.NFTClaimed)

	_, err = f.actors.AwardNft(ctx, "actor-2")
	require.ErrorIs(t, err, ErrNFTExchangeInactive)
}
