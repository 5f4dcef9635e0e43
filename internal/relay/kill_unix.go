//go:build !windows

package relay

import (
	"os/exec"
	"syscall"
)

// The PTY start puts the child in its own session, so its pid doubles as the
// process group id. Signaling the negative pid reaches grandchildren too,
// which prevents orphaned helpers when a timeout fires.

func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
