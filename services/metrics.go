package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPointsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_points_credited_total",
		Help: "Points actually applied to balances by credits, by reason.",
	}, []string{"reason"})

	metricPointsDebited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_points_debited_total",
		Help: "Points actually removed from balances by debits, by reason.",
	}, []string{"reason"})

	metricCapClamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamification_cap_clamps_total",
		Help: "Credits that were clamped by max_points_per_user.",
	})

	metricCooldownDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_cooldown_denials_total",
		Help: "Earning attempts rejected because the action was cooling down.",
	}, []string{"kind"})

	metricEarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_earnings_total",
		Help: "Successful task completions and configured actions.",
	}, []string{"kind"})

	metricRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_redemptions_total",
		Help: "Redemption workflow transitions.",
	}, []string{"event"})

	metricNFTAwards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamification_nft_awards_total",
		Help: "Actors whose nft_claimed flag flipped to true.",
	})

	// MetricPendingRedemptions is refreshed by the scheduler.
	MetricPendingRedemptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gamification_pending_redemptions",
		Help: "Redemption requests waiting for an admin decision.",
	})
)
