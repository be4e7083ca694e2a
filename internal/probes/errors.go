package probes

import (
	"fmt"
	"strings"
	"time"
)

// CommandExecutionError reports an external command that could not run, or
// whose output marks it as failed.
type CommandExecutionError struct {
	Command string
	Reason  string
	Err     error
}

func (e *CommandExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Command, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandExecutionError) Unwrap() error {
	return e.Err
}

// TimedOutError reports a command killed after exceeding its wait bound.
type TimedOutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Command, e.Timeout)
}

// MalformedReportError reports structured output that did not parse as expected.
type MalformedReportError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedReportError) Error() string {
	msg := fmt.Sprintf("malformed %s report: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedReportError) Unwrap() error {
	return e.Err
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
