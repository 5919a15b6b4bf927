package services

import (
	"context"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/go-co-op/gocron/v2"
)

// StartGamificationScheduler runs the periodic settings refresh and the
// pending redemptions gauge. The caller owns Shutdown.
func StartGamificationScheduler(config *ConfigStore, redemptions *RedemptionWorkflow, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every interval: pick up settings written by other instances
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := config.Refresh(ctx); err != nil {
				utils.LogError("[Scheduler] settings refresh failed, keeping cached copy: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	// Every minute: pending redemptions gauge
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			n, err := redemptions.CountPending(ctx)
			if err != nil {
				utils.LogError("[Scheduler] pending redemption count failed: %v", err)
				return
			}
			MetricPendingRedemptions.Set(float64(n))
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	utils.LogInfo("⏰ Gamification scheduler started (settings refresh every %s)", interval)
	return sched, nil
}
