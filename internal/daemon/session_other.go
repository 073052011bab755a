//go:build !unix

package daemon

import "os/exec"

func setSession(cmd *exec.Cmd) error {
	return ErrUnsupported
}
