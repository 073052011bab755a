package host

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"vmanage/internal/topology"
)

// Virsh talks to the hypervisor through the virsh and lscpu command line
// tools. Every call is a single synchronous process execution.
type Virsh struct {
	opts   Options
	runner Runner
	logger zerolog.Logger
}

func NewVirsh(opts Options, runner Runner, logger zerolog.Logger) (*Virsh, error) {
	if opts.VirshPath == "" {
		opts.VirshPath = "virsh"
	}
	if opts.LscpuPath == "" {
		opts.LscpuPath = "lscpu"
	}
	if opts.SysfsPath == "" {
		opts.SysfsPath = topology.SysfsBasePath
	}
	switch opts.TopologySource {
	case "":
		opts.TopologySource = topology.SourceLscpu
	case topology.SourceLscpu, topology.SourceCapabilities, topology.SourceSysfs:
	default:
		return nil, fmt.Errorf("%w: topology source %q is not supported by the virsh backend",
			ErrBackendUnavailable, opts.TopologySource)
	}
	return &Virsh{opts: opts, runner: runner, logger: logger}, nil
}

func (v *Virsh) QueryTopology(ctx context.Context) (topology.Topology, error) {
	switch v.opts.TopologySource {
	case topology.SourceCapabilities:
		out, err := v.runner.Run(ctx, v.opts.VirshPath, v.virshArgs("capabilities")...)
		if err != nil {
			return topology.Topology{}, v.topologyError(err)
		}
		return parseCapabilities(string(out))
	case topology.SourceSysfs:
		return topology.ReadSysfs(v.opts.SysfsPath)
	default:
		out, err := v.runner.Run(ctx, v.opts.LscpuPath)
		if err != nil {
			return topology.Topology{}, v.topologyError(err)
		}
		return topology.ParseLscpu(out)
	}
}

func (v *Virsh) topologyError(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %v", topology.ErrTopologyUnavailable, err)
}

func (v *Virsh) QueryVcpuCount(ctx context.Context, domain string) (int, error) {
	out, err := v.runner.Run(ctx, v.opts.VirshPath, v.virshArgs("dumpxml", domain)...)
	if err != nil {
		return 0, err
	}
	count, err := parseDomainVcpus(string(out))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", topology.ErrDomainNotFound, domain, err)
	}
	return count, nil
}

func (v *Virsh) SetAffinity(ctx context.Context, domain string, vcpu int, cpus []int) error {
	if len(cpus) == 0 {
		return fmt.Errorf("%w: vcpu %d: empty cpu list", ErrPinFailed, vcpu)
	}
	args := v.PinCommand(domain, vcpu, cpus)
	v.logger.Debug().Strs("argv", args).Msg("pinning vcpu")
	if _, err := v.runner.Run(ctx, args[0], args[1:]...); err != nil {
		return fmt.Errorf("%w: vcpu %d: %w", ErrPinFailed, vcpu, err)
	}
	return nil
}

// PinCommand is the argv SetAffinity executes, exposed for dry runs.
func (v *Virsh) PinCommand(domain string, vcpu int, cpus []int) []string {
	args := []string{v.opts.VirshPath}
	args = append(args, v.virshArgs("vcpupin", domain, strconv.Itoa(vcpu), topology.FormatCPUs(cpus))...)
	return args
}

func (v *Virsh) virshArgs(args ...string) []string {
	if v.opts.URI == "" {
		return args
	}
	return append([]string{"-c", v.opts.URI}, args...)
}

// DescribePin renders the equivalent virsh invocation for any backend.
func DescribePin(h Host, domain string, vcpu int, cpus []int) string {
	if v, ok := h.(*Virsh); ok {
		return strings.Join(v.PinCommand(domain, vcpu, cpus), " ")
	}
	return fmt.Sprintf("virsh vcpupin %s %d %s", domain, vcpu, topology.FormatCPUs(cpus))
}
