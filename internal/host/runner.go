package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"vmanage/internal/topology"
)

// Runner executes an external command and returns its stdout. A non-nil
// error carries stderr already folded in by wrapCommandError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, wrapCommandError(err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func wrapCommandError(err error, stderr string) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	trimmed := strings.TrimSpace(stderr)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "authentication failed"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, trimmed)
	case strings.Contains(lower, "domain not found"), strings.Contains(lower, "failed to get domain"):
		return fmt.Errorf("%w: %s", topology.ErrDomainNotFound, trimmed)
	case trimmed != "":
		return fmt.Errorf("%v: %s", err, trimmed)
	}
	return err
}
