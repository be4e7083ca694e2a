package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/user/netreport/internal/util"
)

// Job represents a repeating job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// State
	lastRun    time.Time
	nextRun    time.Time
	lastError  error
	runCount   int
	errorCount int
	running    bool
	mu         sync.RWMutex
}

// JobStatus represents the status of a job.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	LastError  string        `json:"last_error,omitempty"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	Running    bool          `json:"running"`
}

// TickFunc receives the time left until the next run.
type TickFunc func(remaining time.Duration)

// Scheduler runs a job immediately and then once per interval, reporting
// the countdown in between.
type Scheduler struct {
	job       *Job
	tick      TickFunc
	tickEvery time.Duration
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler for job.
func NewScheduler(job *Job) *Scheduler {
	return &Scheduler{
		job:       job,
		tickEvery: time.Second,
	}
}

// OnTick registers a countdown callback.
func (s *Scheduler) OnTick(fn TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = fn
}

// SetInterval changes the wait between runs, effective from the next run.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.job.mu.Lock()
	defer s.job.mu.Unlock()
	s.job.Interval = d
}

// Run executes the job until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	util.Info("Scheduler started: %s every %s", s.job.Name, s.job.Interval)

	s.runJob(ctx)

	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			util.Info("Scheduler stopping")
			return
		case now := <-ticker.C:
			s.job.mu.RLock()
			remaining := s.job.nextRun.Sub(now)
			s.job.mu.RUnlock()

			if remaining > 0 {
				s.notify(remaining)
				continue
			}
			s.notify(0)
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) notify(remaining time.Duration) {
	s.mu.RLock()
	fn := s.tick
	s.mu.RUnlock()
	if fn != nil {
		fn(remaining.Round(time.Second))
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	job := s.job

	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return
	}
	job.running = true
	job.lastRun = time.Now()
	job.mu.Unlock()

	util.Debug("Running job: %s", job.Name)

	err := job.Run(ctx)

	job.mu.Lock()
	job.running = false
	job.runCount++
	if err != nil && ctx.Err() == nil {
		job.lastError = err
		job.errorCount++
		util.Warn("Job %s failed: %v", job.Name, err)
	} else {
		job.lastError = nil
		util.Debug("Job %s completed", job.Name)
	}
	job.nextRun = time.Now().Add(job.Interval)
	job.mu.Unlock()
}

// Status returns the status of the job.
func (s *Scheduler) Status() JobStatus {
	job := s.job
	job.mu.RLock()
	defer job.mu.RUnlock()

	status := JobStatus{
		Name:       job.Name,
		Interval:   job.Interval,
		LastRun:    job.lastRun,
		NextRun:    job.nextRun,
		RunCount:   job.runCount,
		ErrorCount: job.errorCount,
		Running:    job.running,
	}
	if job.lastError != nil {
		status.LastError = job.lastError.Error()
	}
	return status
}
