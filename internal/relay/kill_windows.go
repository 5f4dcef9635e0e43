//go:build windows

package relay

import "os/exec"

// Windows has no process groups in the POSIX sense; killing the direct child
// is the best available approximation.

func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
