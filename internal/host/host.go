package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vmanage/internal/topology"
)

var ErrPermissionDenied = errors.New("permission denied")
var ErrPinFailed = errors.New("pin failed")
var ErrBackendUnavailable = errors.New("backend unavailable")

type BackendKind string

const (
	BackendVirsh   BackendKind = "virsh"
	BackendLibvirt BackendKind = "libvirt"
)

// Host is the full capability set the planner and migration loop need.
type Host interface {
	topology.Querier
	SetAffinity(ctx context.Context, domain string, vcpu int, cpus []int) error
}

type Options struct {
	Backend        BackendKind
	URI            string
	VirshPath      string
	LscpuPath      string
	TopologySource topology.Source
	SysfsPath      string
}

func New(opts Options, logger zerolog.Logger) (Host, error) {
	switch opts.Backend {
	case BackendVirsh, "":
		return NewVirsh(opts, ExecRunner{}, logger.With().Str("component", "virsh").Logger())
	case BackendLibvirt:
		return NewLibvirt(opts.URI, logger.With().Str("component", "libvirt").Logger())
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, opts.Backend)
	}
}
