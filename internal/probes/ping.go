package probes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/platform"
	"github.com/user/netreport/internal/util"
)

// windowsPingFailures are reported by Windows ping on stdout instead of stderr.
var windowsPingFailures = []string{
	"could not find host",
	"transmit failed",
}

// PingProbe runs the system ping command.
type PingProbe struct {
	exec   Executor
	family platform.Family
	binary string
}

// NewPingProbe creates a new ping probe.
func NewPingProbe(exec Executor, family platform.Family, binary string) *PingProbe {
	if binary == "" {
		binary = "ping"
	}
	return &PingProbe{
		exec:   exec,
		family: family,
		binary: binary,
	}
}

// PingArgs builds the argument vector for the given family.
func PingArgs(family platform.Family, host string, count int) ([]string, error) {
	c := strconv.Itoa(count)
	switch family {
	case platform.FamilyLinux, platform.FamilyDarwin, platform.FamilyBSD, platform.FamilyOther:
		return []string{host, "-c", c}, nil
	case platform.FamilyWindows:
		return []string{host, "-n", c}, nil
	default:
		return nil, fmt.Errorf("no ping syntax for platform %s", family)
	}
}

// Run pings host count times and classifies the result. The result is
// returned even when classification fails so callers can report it.
func (p *PingProbe) Run(ctx context.Context, host string, count int) (*model.CommandResult, error) {
	args, err := PingArgs(p.family, host, count)
	if err != nil {
		return nil, err
	}

	util.Info("Pinging %s (%d probes) on a %s system", host, count, p.family)

	result, err := p.exec.Run(ctx, p.binary, args...)
	if err != nil {
		return result, err
	}

	return result, ClassifyPing(p.family, result)
}

// ClassifyPing decides whether a ping result succeeded.
func ClassifyPing(family platform.Family, result *model.CommandResult) error {
	cmd := "ping"
	if result != nil && len(result.Command) > 0 {
		cmd = strings.Join(result.Command, " ")
	}

	if result.Failed() {
		return &CommandExecutionError{
			Command: cmd,
			Reason:  "request incomplete, verify host address and connection",
		}
	}

	if family == platform.FamilyWindows {
		for _, marker := range windowsPingFailures {
			if strings.Contains(result.Stdout, marker) {
				return &CommandExecutionError{
					Command: cmd,
					Reason:  fmt.Sprintf("unable to complete request (%s), verify host address", marker),
				}
			}
		}
	}

	return nil
}
