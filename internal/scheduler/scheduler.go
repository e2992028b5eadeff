package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// minTick floors the base tick to prevent CPU thrashing with co-prime intervals.
const minTick = time.Second

// Job is a named unit of recurring work.
type Job struct {
	// Name identifies the job. Names must be unique within a Scheduler.
	Name string

	// Interval is how often the job runs. If 0, the scheduler's default is used.
	Interval time.Duration

	// Run performs the work. It must honour ctx.
	Run func(ctx context.Context) error
}

// Result is the outcome of one job run.
type Result struct {
	// Name is the job name.
	Name string

	// Err is the error returned by Run, or a recovered panic.
	Err error

	// Duration is how long Run took.
	Duration time.Duration

	// RanAt is when the run started.
	RanAt time.Time
}

// Scheduler runs jobs periodically with bounded concurrency.
//
// All jobs run immediately on start. After that the scheduler ticks at the
// GCD of all job intervals and runs only the jobs that are due. Results are
// emitted on [Scheduler.Results].
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	jobs           []Job
	interval       time.Duration // default interval
	maxConcurrency int
	results        chan Result
	logger         *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	// per-job timing for tick-and-check pattern
	lastRunAt    map[string]time.Time
	baseInterval time.Duration
}

// New creates a [Scheduler].
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. A maxConcurrency below 1 is treated as 1.
func New(jobs []Job, interval time.Duration, maxConcurrency int, logger *slog.Logger) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:           jobs,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		results:        make(chan Result, len(jobs)),
		logger:         logger,
	}
}

// Results returns a receive-only channel of [Result] values.
//
// The channel is closed when the scheduler stops.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// calculateBaseInterval determines the tick interval: the GCD of all job intervals.
func (s *Scheduler) calculateBaseInterval() time.Duration {
	if len(s.jobs) == 0 {
		return s.interval
	}

	result := s.intervalOf(s.jobs[0])
	for _, job := range s.jobs[1:] {
		result = gcdDuration(result, s.intervalOf(job))
	}

	if result < minTick {
		result = minTick
	}
	return result
}

func (s *Scheduler) intervalOf(job Job) time.Duration {
	if job.Interval > 0 {
		return job.Interval
	}
	return s.interval
}

// gcdDuration calculates the greatest common divisor of two durations.
func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Start begins the scheduling loop in a background goroutine.
//
// If ctx is nil, context.Background() is used. Start is idempotent, and a
// no-op if Stop was called first.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.lastRunAt = make(map[string]time.Time, len(s.jobs))
	s.baseInterval = s.calculateBaseInterval()

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		s.runDueJobs(runCtx, true)

		ticker := time.NewTicker(s.baseInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.runDueJobs(runCtx, false)
			}
		}
	}()
}

// Stop halts the scheduler and waits for in-flight runs to finish.
//
// Stop is idempotent and safe to call before Start. The results channel is
// closed when Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// runDueJobs runs the jobs whose interval has elapsed. If immediate is true,
// every job runs.
//
// lastRunAt is updated when a run STARTS, so effective interval = configured
// interval + run duration for slow jobs.
func (s *Scheduler) runDueJobs(ctx context.Context, immediate bool) {
	now := time.Now()
	due := make([]Job, 0, len(s.jobs))

	s.mu.Lock()
	for _, job := range s.jobs {
		last, exists := s.lastRunAt[job.Name]
		if immediate || !exists || now.Sub(last) >= s.intervalOf(job) {
			due = append(due, job)
			s.lastRunAt[job.Name] = now
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	s.runJobs(ctx, due)
}

// runJobs runs a batch of jobs concurrently, at most maxConcurrency at a time.
func (s *Scheduler) runJobs(ctx context.Context, jobs []Job) {
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := s.runJob(ctx, job)
			select {
			case s.results <- result:
			case <-ctx.Done():
			}
			return nil
		})
	}

	_ = g.Wait()
}

// runJob runs a single job with panic recovery.
func (s *Scheduler) runJob(ctx context.Context, job Job) (result Result) {
	start := time.Now()
	result = Result{Name: job.Name, RanAt: start}

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("job panic",
				"job", job.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result.Err = fmt.Errorf("job panic (correlation_id: %s)", correlationID)
		}
		result.Duration = time.Since(start)
	}()

	if job.Run == nil {
		result.Err = fmt.Errorf("job %q has no run function", job.Name)
		return result
	}
	result.Err = job.Run(ctx)
	return result
}
