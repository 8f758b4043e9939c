package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// JobState is the explicit per-job state machine. A job already Running
// when its next tick fires is skipped for that tick.
type JobState string

const (
	StateIdle    JobState = "idle"
	StateRunning JobState = "running"
)

// ErrUnknownJob is returned by RunNow for unregistered job names.
var ErrUnknownJob = errors.New("unknown job")

// JobFunc is one recompute cycle: a function of its inputs producing a new
// published generation, with all I/O isolated inside.
type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	cadence time.Duration
	fn      JobFunc

	state   JobState
	lastRun time.Time
	lastErr string
}

// JobStatus is the externally visible state of one managed job.
type JobStatus struct {
	Name      string        `json:"name"`
	State     JobState      `json:"state"`
	Cadence   time.Duration `json:"cadence"`
	LastRun   time.Time     `json:"lastRun"`
	LastError string        `json:"lastError,omitempty"`
}

// Scheduler drives the periodic recompute jobs at independent cadences.
// A failing job run is logged and the job returns to Idle for the next
// tick; it never halts the loop or the other jobs.
type Scheduler struct {
	mu    sync.Mutex
	jobs  map[string]*job
	order []string

	scheduler *gocron.Scheduler
	baseCtx   context.Context
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
	stopping  bool

	now func() time.Time
}

// New creates a stopped scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:      make(map[string]*job),
		scheduler: gocron.NewScheduler(time.UTC),
		baseCtx:   ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Register adds a job to the table. Must be called before Start.
func (s *Scheduler) Register(name string, cadence time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = &job{name: name, cadence: cadence, fn: fn, state: StateIdle}
	s.order = append(s.order, name)
}

// Start schedules every registered job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) == 0 {
		log.Println("scheduler: no jobs registered; nothing to schedule")
		return nil
	}

	for _, name := range s.order {
		j := s.jobs[name]
		name := name
		if _, err := s.scheduler.Every(j.cadence).Do(func() {
			s.tick(name)
		}); err != nil {
			return fmt.Errorf("schedule job %s: %w", name, err)
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// RunNow triggers one job run immediately, synchronously. Used for
// first-boot initialization and the administrative surface. A job already
// Running is skipped, which is not an error.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.tick(name)
	return nil
}

// Stop is cooperative: it cancels the job context so in-flight runs wind
// down at their next checkpoint, waits up to the ctx deadline, and then
// force-returns with a log line.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.scheduler.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Println("scheduler: stop timed out waiting for in-flight jobs; force-stopping")
		return ctx.Err()
	}
}

// Jobs returns the status of every job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		out = append(out, JobStatus{
			Name:      j.name,
			State:     j.state,
			Cadence:   j.cadence,
			LastRun:   j.lastRun,
			LastError: j.lastErr,
		})
	}
	return out
}

// tick runs one job cycle, enforcing the no-overlap invariant through the
// Idle/Running state rather than a long-held lock.
func (s *Scheduler) tick(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok || s.stopping {
		s.mu.Unlock()
		return
	}
	if j.state == StateRunning {
		s.mu.Unlock()
		log.Printf("scheduler: job %s still running; skipping this tick", name)
		return
	}
	j.state = StateRunning
	fn := j.fn
	s.inflight.Add(1)
	s.mu.Unlock()

	start := s.now()
	err := s.runProtected(name, fn)

	s.mu.Lock()
	j.state = StateIdle
	j.lastRun = start.UTC()
	if err != nil {
		j.lastErr = err.Error()
	} else {
		j.lastErr = ""
	}
	s.mu.Unlock()
	s.inflight.Done()

	if err != nil {
		log.Printf("scheduler: job %s failed: %v", name, err)
	} else {
		log.Printf("scheduler: job %s completed in %s", name, time.Since(start).Round(time.Millisecond))
	}
}

// runProtected executes the job, converting panics into errors so a bad
// store or provider can never take down the scheduler loop.
func (s *Scheduler) runProtected(name string, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v\n%s", name, r, debug.Stack())
		}
	}()
	return fn(s.baseCtx)
}
