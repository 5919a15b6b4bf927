package services

import (
	"testing"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTierThresholds(t *testing.T) {
	cases := map[int64]string{
		0:         "Newcomer",
		99:        "Newcomer",
		100:       "Bronze",
		499:       "Bronze",
		500:       "Silver",
		1_000:     "Gold",
		4_999:     "Gold",
		5_000:     "Platinum",
		10_000:    "Diamond",
		50_000:    "Legendary",
		1_000_000: "Legendary",
	}
	for points, want := range cases {
		require.Equal(t, want, EvaluateTier(points).Name, "points=%d", points)
	}
}

func TestEvaluateTierIsMonotonic(t *testing.T) {
	prev := EvaluateTier(0).Rank
	for p := int64(0); p <= 60_000; p += 7 {
		rank := EvaluateTier(p).Rank
		require.GreaterOrEqual(t, rank, prev, "points=%d", p)
		prev = rank
	}
}

func TestTiersAreStrictlyIncreasing(t *testing.T) {
	for i := 1; i < len(models.Tiers); i++ {
		require.Greater(t, models.Tiers[i].MinPoints, models.Tiers[i-1].MinPoints)
		require.Equal(t, i+1, models.Tiers[i].Rank)
	}
}

func TestTierProgressFor(t *testing.T) {
	p := TierProgressFor(300)
	require.Equal(t, "Bronze", p.Current.Name)
	require.NotNil(t, p.Next)
	require.Equal(t, "Silver", p.Next.Name)
	require.Equal(t, int64(200), p.PointsToNext)
	require.InDelta(t, 50.0, p.Progress, 0.001)

	top := TierProgressFor(75_000)
	require.Equal(t, "Legendary", top.Current.Name)
	require.Nil(t, top.Next)
	require.Zero(t, top.PointsToNext)
	require.Equal(t, 100.0, top.Progress)
}
