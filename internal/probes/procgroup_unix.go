//go:build !windows

package probes

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess puts the child in its own process group so that a timeout
// also kills anything it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
