// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"badge-progress-system/logging"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs periodic jobs. A job never overlaps itself; a tick that
// arrives while the previous run is still busy is skipped.
type Scheduler struct {
	ctx   context.Context
	sched gocron.Scheduler
}

// NewScheduler creates a stopped scheduler whose jobs receive ctx.
func NewScheduler(ctx context.Context) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{ctx: ctx, sched: sched}, nil
}

// Every registers fn to run every interval, starting immediately.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if s.ctx.Err() != nil {
				return
			}
			fn(s.ctx)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	logging.Info().Str("job", name).Dur("interval", interval).Msg("⏱️ job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
