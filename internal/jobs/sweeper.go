package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/getherald/herald/internal/model"
)

// Sweeper evicts terminal jobs older than the configured retention on a
// gocron schedule. Running jobs are never evicted, a job stuck in
// running only goes away with the process.
type Sweeper struct {
	registry  *Registry
	maxAge    time.Duration
	scheduler gocron.Scheduler
}

// NewSweeper validates cfg and prepares the schedule. Cron takes
// precedence over Every when both are set.
func NewSweeper(ctx context.Context, registry *Registry, cfg model.Retention) (*Sweeper, error) {
	maxAge, err := model.ParseCueDuration(cfg.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("parsing retention.max_age: %w", err)
	}

	sweeper := &Sweeper{
		registry: registry,
		maxAge:   maxAge,
	}

	var job gocron.JobDefinition
	switch {
	case cfg.Schedule.Cron != "":
		if err := model.ParseCron(cfg.Schedule.Cron); err != nil {
			return nil, fmt.Errorf("parsing retention.schedule.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Schedule.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Schedule.Cron)
	case cfg.Schedule.Every != "":
		d, err := model.ParseCueDuration(cfg.Schedule.Every)
		if err != nil {
			return nil, fmt.Errorf("parsing retention.schedule.every: %w", err)
		}
		job = gocron.DurationJob(d)
		slog.DebugContext(ctx, "successfully parsed", "every", d.String())
	default:
		return nil, errors.New("both cron and every are empty")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		job,
		gocron.NewTask(func() {
			if _, err := sweeper.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "retention sweep failed", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	sweeper.scheduler = scheduler

	return sweeper, nil
}

// Sweep runs one eviction pass and reports how many jobs went away.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.maxAge)
	n, err := s.registry.EvictBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "evicted terminal jobs", "count", n, "older_than", s.maxAge.String())
	}
	return n, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
}

func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}
