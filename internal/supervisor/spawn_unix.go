//go:build !windows

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// startDetached launches the binary in its own session with std streams on
// /dev/null, so the child survives the supervisor's terminal and never
// blocks on inherited pipes.
func startDetached(binary string, args []string) (int, error) {
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	cmd := exec.Command(binary, args...)
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release process handle: %w", err)
	}
	return pid, nil
}
