package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// jobTimeout bounds a single tick of any job
const jobTimeout = 30 * time.Second

// Jobs configures the scheduler
type Jobs struct {
	Siren             *Siren
	SirenInterval     time.Duration
	Retention         *Retention
	RetentionInterval time.Duration
}

// Start schedules every configured job and starts the scheduler.
// The caller stops it with Shutdown.
func Start(ctx context.Context, jobs Jobs) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if jobs.Siren != nil && jobs.SirenInterval > 0 {
		// Prime before the first interval so startup backlog is not reported
		if _, err := jobs.Siren.Check(ctx); err != nil {
			logrus.WithError(err).Warn("Siren priming failed")
		}
		_, err = sched.NewJob(
			gocron.DurationJob(jobs.SirenInterval),
			gocron.NewTask(func() {
				tickCtx, cancel := context.WithTimeout(ctx, jobTimeout)
				defer cancel()
				if _, err := jobs.Siren.Check(tickCtx); err != nil {
					logrus.WithError(err).Error("[Scheduler] siren tick failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName("siren"),
		)
		if err != nil {
			return nil, err
		}
	}

	if jobs.Retention != nil && jobs.RetentionInterval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(jobs.RetentionInterval),
			gocron.NewTask(func() {
				tickCtx, cancel := context.WithTimeout(ctx, jobTimeout)
				defer cancel()
				if _, err := jobs.Retention.Sweep(tickCtx); err != nil {
					logrus.WithError(err).Error("[Scheduler] retention sweep failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName("gallery-retention"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	logrus.WithField("jobs", len(sched.Jobs())).Info("Scheduler started")
	return sched, nil
}
