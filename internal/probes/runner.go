// Package probes runs external diagnostic commands and parses their output.
package probes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/util"
)

// Executor runs external commands to completion.
type Executor interface {
	// Run captures stdout and stderr of the command in full.
	Run(ctx context.Context, name string, args ...string) (*model.CommandResult, error)
	// RunToFile redirects stdout into path, then reads the file back into
	// the result's Stdout.
	RunToFile(ctx context.Context, path, name string, args ...string) (*model.CommandResult, error)
}

// Runner executes commands as child processes with a bounded wait.
type Runner struct {
	timeout   time.Duration
	waitDelay time.Duration
}

// NewRunner creates a runner. A timeout <= 0 disables the bound.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{
		timeout:   timeout,
		waitDelay: 5 * time.Second,
	}
}

// Run executes name with args and captures both output streams.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*model.CommandResult, error) {
	var stdout bytes.Buffer
	result, err := r.execute(ctx, &stdout, name, args)
	if result != nil {
		result.Stdout = stdout.String()
	}
	return result, err
}

// RunToFile executes name with stdout redirected into path.
func (r *Runner) RunToFile(ctx context.Context, path, name string, args ...string) (*model.CommandResult, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, &CommandExecutionError{
			Command: commandLine(name, args),
			Reason:  "failed to prepare output file",
			Err:     err,
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &CommandExecutionError{
			Command: commandLine(name, args),
			Reason:  "failed to open output file",
			Err:     err,
		}
	}

	result, runErr := r.execute(ctx, file, name, args)
	if cerr := file.Close(); cerr != nil && runErr == nil {
		runErr = &CommandExecutionError{
			Command: commandLine(name, args),
			Reason:  "failed to close output file",
			Err:     cerr,
		}
	}
	if runErr != nil {
		return result, runErr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return result, &CommandExecutionError{
			Command: commandLine(name, args),
			Reason:  "failed to read output file",
			Err:     err,
		}
	}
	result.Stdout = string(data)

	return result, nil
}

func (r *Runner) execute(ctx context.Context, stdout io.Writer, name string, args []string) (*model.CommandResult, error) {
	cmdline := commandLine(name, args)

	runCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay
	configureProcess(cmd)

	util.Debug("Running: %s", cmdline)

	start := time.Now()
	err := cmd.Run()

	result := &model.CommandResult{
		Command:  append([]string{name}, args...),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return result, nil
	}

	// Parent cancellation wins over our own deadline.
	if ctx.Err() != nil {
		return result, &CommandExecutionError{Command: cmdline, Reason: "cancelled", Err: ctx.Err()}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, &TimedOutError{Command: cmdline, Timeout: r.timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A non-zero exit is judged by the classifier, not here.
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	reason := "failed to start"
	if errors.Is(err, exec.ErrNotFound) {
		reason = "command not found"
	}
	return nil, &CommandExecutionError{Command: cmdline, Reason: reason, Err: err}
}
