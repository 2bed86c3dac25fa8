//go:build windows

package supervise

import "os/exec"

// Windows has no process groups in the Unix sense; rely on killing the
// process handle directly.
func setupProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
