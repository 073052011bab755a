// Package daemon detaches a long-running command from the invoking session
// by re-executing the current binary in a new session.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

const EnvDetached = "VMANAGE_DETACHED"

var ErrUnsupported = errors.New("detaching is not supported on this platform")

// IsDetached reports whether this process is the re-executed child.
func IsDetached() bool {
	return os.Getenv(EnvDetached) == "1"
}

// Detach starts a copy of the running program with args in its own session.
// Its stdin is /dev/null and its output is appended to logFile. The caller
// gets the child's PID and is expected to exit.
func Detach(args []string, logFile string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("cannot locate executable: %w", err)
	}
	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return 0, fmt.Errorf("cannot open log file %s: %w", logFile, err)
	}
	defer out.Close()
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, err
	}
	defer devNull.Close()

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), EnvDetached+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = out
	cmd.Stderr = out
	if err := setSession(cmd); err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("cannot start detached process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, err
	}
	return pid, nil
}
