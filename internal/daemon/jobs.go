package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/pipeline"
)

// ReportRunner runs one report.
type ReportRunner interface {
	Run(ctx context.Context, req model.ReportRequest) (*pipeline.Outcome, error)
}

// ReportJob repeats a report request. The runner and request can be swapped
// between runs, for example after a config reload.
type ReportJob struct {
	mu     sync.RWMutex
	runner ReportRunner
	req    model.ReportRequest
}

// NewReportJob creates a report job.
func NewReportJob(runner ReportRunner, req model.ReportRequest) *ReportJob {
	return &ReportJob{runner: runner, req: req}
}

// Update replaces the runner and request used by the next run.
func (j *ReportJob) Update(runner ReportRunner, req model.ReportRequest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runner = runner
	j.req = req
}

// Run executes the current request.
func (j *ReportJob) Run(ctx context.Context) error {
	j.mu.RLock()
	runner, req := j.runner, j.req
	j.mu.RUnlock()

	_, err := runner.Run(ctx, req)
	return err
}

// Job wraps the report job for the scheduler.
func (j *ReportJob) Job(interval time.Duration) *Job {
	return &Job{
		Name:     "report",
		Interval: interval,
		Run:      j.Run,
	}
}
