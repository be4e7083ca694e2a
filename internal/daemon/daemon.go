// Package daemon repeats report runs in the foreground until interrupted.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/user/netreport/internal/util"
)

// Daemon drives a scheduler and stops it on SIGINT or SIGTERM.
type Daemon struct {
	scheduler *Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	startTime time.Time
	mu        sync.RWMutex
}

// New creates a new daemon for job.
func New(job *Job) *Daemon {
	return &Daemon{scheduler: NewScheduler(job)}
}

// Scheduler returns the underlying scheduler.
func (d *Daemon) Scheduler() *Scheduler {
	return d.scheduler
}

// Start runs the scheduler in the background until parent is cancelled, a
// signal arrives or Stop is called.
func (d *Daemon) Start(parent context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.ctx, d.cancel = context.WithCancel(parent)
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduler.Run(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	return nil
}

// Wait waits for the daemon to finish.
func (d *Daemon) Wait() {
	d.wg.Wait()
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop cancels the scheduler and waits for the current run to return.
func (d *Daemon) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	d.mu.RUnlock()
	if cancel == nil {
		return
	}

	cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		util.Info("Stopped after %d run(s)", d.scheduler.Status().RunCount)
	case <-time.After(30 * time.Second):
		util.Warn("Stop timed out")
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		util.Info("Received signal: %v", sig)
		d.cancel()
	case <-d.ctx.Done():
	}
}

// IsRunning returns whether the daemon is running.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// GetStatus returns the daemon status.
func (d *Daemon) GetStatus() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return &DaemonStatus{
		Running:   d.running,
		StartTime: d.startTime,
		Uptime:    time.Since(d.startTime),
		Job:       d.scheduler.Status(),
	}
}

// DaemonStatus holds the current daemon status.
type DaemonStatus struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
	Job       JobStatus
}
