// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartResetScheduler runs the daily quota sweep at 00:00 UTC and the weekly XP
// sweep on Mondays at 00:00 UTC. Lazy resets on read cover any missed run.
func (s *UserService) StartResetScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() {
			if _, err := s.ResetAllDaily(context.Background(), false); err != nil {
				s.log.Error().Err(err).Msg("[Scheduler] daily reset sweep failed")
			}
		}),
		gocron.WithName("daily-quota-reset"),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.CronJob("0 0 * * 1", false),
		gocron.NewTask(func() {
			if _, err := s.ResetAllWeekly(context.Background()); err != nil {
				s.log.Error().Err(err).Msg("[Scheduler] weekly reset sweep failed")
			}
		}),
		gocron.WithName("weekly-xp-reset"),
	); err != nil {
		return nil, err
	}

	sched.Start()
	s.log.Info().Msg("⏰ reset scheduler started (00:00 UTC daily, Monday weekly)")
	return sched, nil
}
