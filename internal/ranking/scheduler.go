package ranking

import (
	"context"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"github.com/rs/zerolog"
)

// Scheduler drives the periodic jobs of the service: the ranking pass and
// the persistence snapshot. Each job runs once after its initial delay and
// then repeats at its interval.
type Scheduler struct {
	quartzScheduler quartz.Scheduler
	log             zerolog.Logger
	stopTimeout     time.Duration
}

// NewScheduler builds a scheduler with quartz's own logging silenced;
// job outcomes are logged by the tasks themselves.
func NewScheduler(log zerolog.Logger, stopTimeout time.Duration) *Scheduler {
	quartzScheduler, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	return &Scheduler{
		quartzScheduler: quartzScheduler,
		log:             log.With().Str("component", "scheduler").Logger(),
		stopTimeout:     stopTimeout,
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.quartzScheduler.Start(ctx)
	s.log.Info().Msg("scheduler started")
}

// Schedule registers task to run once after initialDelay and then every
// interval. Task errors are logged and do not stop the recurrence.
func (s *Scheduler) Schedule(key string, initialDelay, interval time.Duration, task func(context.Context) error) error {
	wrapped := func(ctx context.Context) (bool, error) {
		if err := task(ctx); err != nil {
			s.log.Error().Err(err).Str("job", key).Msg("scheduled job failed")
			return false, nil
		}
		return true, nil
	}

	steady := quartz.NewJobDetail(job.NewFunctionJob[bool](wrapped), quartz.NewJobKey(key))
	if initialDelay <= 0 {
		return s.quartzScheduler.ScheduleJob(steady, quartz.NewSimpleTrigger(interval))
	}

	// One-shot kick after the initial delay, then the steady interval.
	kick := job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		ok, _ := wrapped(ctx)
		return ok, s.quartzScheduler.ScheduleJob(steady, quartz.NewSimpleTrigger(interval))
	})
	kickDetail := quartz.NewJobDetail(kick, quartz.NewJobKey(key+"-init"))
	return s.quartzScheduler.ScheduleJob(kickDetail, quartz.NewRunOnceTrigger(initialDelay))
}

// Stop cancels all recurrences and waits for in-flight jobs to finish.
// Jobs already running are allowed to complete rather than interrupted, so
// a ranking pass never ends half-folded.
func (s *Scheduler) Stop(ctx context.Context) {
	_ = s.quartzScheduler.Clear()
	s.quartzScheduler.Stop()

	ctx, cancel := context.WithTimeout(ctx, s.stopTimeout)
	defer cancel()
	s.quartzScheduler.Wait(ctx)
	s.log.Info().Msg("scheduler stopped")
}
