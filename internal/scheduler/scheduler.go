package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/alert"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/watchlist"
)

// Job is a named task run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs the background jobs of the bot.
type Scheduler struct {
	cron *gocron.Scheduler
	jobs []Job
}

func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		cron: gocron.NewScheduler(time.UTC),
		jobs: jobs,
	}
}

// Start registers every job and starts the scheduler in the background. Each job runs once
// right away, then on its interval, with ctx passed to every run.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return errors.Errorf("job %s: interval must be positive, got %s", job.Name, job.Interval)
		}
		job := job
		if _, err := s.cron.Every(job.Interval).Tag(job.Name).Do(func() { runJob(ctx, job) }); err != nil {
			return errors.Wrapf(err, "schedule job %s", job.Name)
		}
		log.Debugf("scheduled job %s every %s", job.Name, job.Interval)
	}

	s.cron.StartAsync()
	log.Info("Scheduler started")
	return nil
}

// Stop halts the scheduler. Runs already in flight finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info("Scheduler stopped")
}

func runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	err := job.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, alert.ErrPassInProgress), errors.Is(err, watchlist.ErrUpdateInProgress):
		log.Debugf("job %s skipped: %v", job.Name, err)
	default:
		log.Errorf("job %s failed: %v", job.Name, err)
	}
}

// AlertJob runs one evaluation pass per tick.
func AlertJob(e *alert.Evaluator, interval time.Duration) Job {
	return Job{
		Name:     "alerts",
		Interval: interval,
		Run: func(ctx context.Context) error {
			res, err := e.Run(ctx)
			if err != nil {
				return err
			}
			if len(res.Fired) > 0 {
				log.Infof("🔔 Alert pass checked %d alerts over %d symbols, fired %d", res.Checked, res.Symbols, len(res.Fired))
			}
			return nil
		},
	}
}

// WatchlistJob refreshes the posted watchlist per tick.
func WatchlistJob(u *watchlist.Updater, interval time.Duration) Job {
	return Job{
		Name:     "watchlist",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := u.Run(ctx)
			return err
		},
	}
}

// MetricsJob persists the bot counters per tick.
func MetricsJob(m *metrics.BotMetrics, store metrics.Store, interval time.Duration) Job {
	return Job{
		Name:     "metrics",
		Interval: interval,
		Run: func(ctx context.Context) error {
			return m.Save(ctx, store)
		},
	}
}
