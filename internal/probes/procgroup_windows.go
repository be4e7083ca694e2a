//go:build windows

package probes

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureProcess starts the child in a new process group and kills it on
// cancellation.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
