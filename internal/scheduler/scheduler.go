// Package scheduler triggers the discovery cycle at startup and on a cron
// schedule evaluated in UTC.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSpec fires every day at 00:00 UTC
const DefaultSpec = "0 0 * * *"

// Job is one run of the scheduled work
type Job func(ctx context.Context)

// Scheduler owns a single recurring trigger and a one-shot trigger at Start.
// Both share one wrapped job, so a run is skipped while another is active.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	log      zerolog.Logger

	entry   cron.EntryID
	job     cron.Job
	ctx     context.Context
	running sync.WaitGroup
}

// New parses a standard five-field cron spec
func New(spec string, log zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return newWithSchedule(schedule, log), nil
}

func newWithSchedule(schedule cron.Schedule, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{log}),
		),
		schedule: schedule,
		log:      log,
		ctx:      context.Background(),
	}
}

// Schedule registers the job. It must be called once, before Start.
func (s *Scheduler) Schedule(job Job) error {
	if s.job != nil {
		return fmt.Errorf("job already scheduled")
	}

	// Recover sits inside SkipIfStillRunning so a panicking run still
	// releases the running slot.
	logger := cronLogger{s.log}
	s.job = cron.NewChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	).Then(cron.FuncJob(func() { job(s.ctx) }))

	s.entry = s.cron.Schedule(s.schedule, s.job)
	return nil
}

// Start runs the job once right away and starts the recurring trigger
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()

	if s.job == nil {
		return
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.job.Run()
	}()

	s.log.Info().Time("next_run", s.Next()).Msg("Scheduler started")
}

// Stop halts the triggers. The returned context is done once running jobs
// have returned.
func (s *Scheduler) Stop() context.Context {
	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		cancel()
	}()
	return ctx
}

// Next returns the next recurring run, or the zero time before Start
func (s *Scheduler) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// cronLogger routes cron's logging through zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
