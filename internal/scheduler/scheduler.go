package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/logging"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic scrapes. A job never overlaps with itself.
type Scheduler struct {
	cron       *cron.Cron
	mu         sync.Mutex
	jobs       map[string]cron.EntryID
	timezone   *time.Location
	jobTimeout time.Duration
	log        zerolog.Logger

	// ctx is the parent of every job run, set by Start
	ctx context.Context
}

// New creates a new scheduler with the given timezone. Each job run is
// cancelled after jobTimeout, or never when jobTimeout is zero.
func New(timezone string, jobTimeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	log = logging.Component(log, "scheduler")

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&log))),
	)

	return &Scheduler{
		cron:       c,
		jobs:       make(map[string]cron.EntryID),
		timezone:   loc,
		jobTimeout: jobTimeout,
		log:        log,
		ctx:        context.Background(),
	}, nil
}

// AddJob adds a job with a cron schedule
// schedule format: "0 */6 * * *" (every six hours)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, job); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()

	s.log.Info().Str("job", name).Str("schedule", schedule).Msg("Added job")
	return nil
}

// Start begins running scheduled jobs. Cancelling ctx cancels running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.log.Info().Str("timezone", s.timezone.String()).Msg("Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info().Msg("Stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	s.log.Info().Str("job", name).Msg("Starting job")
	start := time.Now()

	if err := job(ctx); err != nil {
		return err
	}

	s.log.Info().Str("job", name).Dur("took", time.Since(start)).Msg("Job completed")
	return nil
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}
