package services

import (
	"math"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
)

// TierProgress describes where a balance sits between two tiers.
type TierProgress struct {
	Current      models.Tier  `json:"current"`
	Next         *models.Tier `json:"next,omitempty"` // nil at the top tier
	PointsToNext int64        `json:"points_to_next"`
	Progress     float64      `json:"progress"` // 0-100 within the current band
}

// EvaluateTier maps a balance to its tier. A balance exactly on a threshold
// belongs to that tier. Pure; the result is never persisted.
func EvaluateTier(points int64) models.Tier {
	current := models.Tiers[0]
	for _, t := range models.Tiers {
		if points >= t.MinPoints {
			current = t
		}
	}
	return current
}

// TierProgressFor computes the next tier and the progress towards it.
func TierProgressFor(points int64) TierProgress {
	current := EvaluateTier(points)
	p := TierProgress{Current: current, Progress: 100}
	if current.Rank >= len(models.Tiers) {
		return p
	}

	next := models.Tiers[current.Rank] // ranks are 1-based
	p.Next = &next
	p.PointsToNext = next.MinPoints - points

	band := float64(next.MinPoints - current.MinPoints)
	pct := float64(points-current.MinPoints) / band * 100
	p.Progress = math.Round(pct*100) / 100
	return p
}
