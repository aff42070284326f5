// Package scheduler runs registered jobs on a fixed period with a
// single-instance-per-tag guarantee: registering a tag twice keeps the
// existing job, and one job never has two live executions.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Job func(ctx context.Context) error

type job struct {
	tag        string
	every      time.Duration
	runTimeout time.Duration
	fn         Job
}

type Scheduler struct {
	log     *zap.Logger
	mu      sync.Mutex
	jobs    map[string]*job
	started bool
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:  log,
		jobs: make(map[string]*job),
	}
}

// Register adds a periodic job. A second registration with the same tag is
// dropped and Register returns false ("keep existing" policy). Registration
// after Run has started is rejected.
func (s *Scheduler) Register(tag string, every, runTimeout time.Duration, fn Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return false
	}
	if _, exists := s.jobs[tag]; exists {
		return false
	}
	s.jobs[tag] = &job{
		tag:        tag,
		every:      every,
		runTimeout: runTimeout,
		fn:         fn,
	}
	return true
}

// Run executes every registered job once immediately, then on its period,
// and blocks until ctx is cancelled and all in-flight runs have returned.
// Each job runs on its own goroutine; within a job, runs are strictly
// sequential, so a run that outlives its period simply absorbs the missed
// ticks instead of piling up concurrent executions.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.runLoop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	s.log.Info("job scheduled",
		zap.String("tag", j.tag),
		zap.Duration("every", j.every))

	s.runOnce(ctx, j)

	ticker := time.NewTicker(j.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("job stopped", zap.String("tag", j.tag))
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, j.runTimeout)
	defer cancel()

	start := time.Now()
	if err := j.fn(runCtx); err != nil {
		s.log.Warn("job run failed",
			zap.String("tag", j.tag),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	s.log.Debug("job run complete",
		zap.String("tag", j.tag),
		zap.Duration("took", time.Since(start)))
}
