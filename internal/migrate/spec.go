package migrate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vmanage/internal/topology"
)

var ErrInvalidCore = errors.New("invalid core")
var ErrInvalidVcpu = errors.New("invalid vcpu")
var ErrMissingParameter = errors.New("missing parameter")

// Unset marks an index the caller never supplied.
const Unset = -1

type Spec struct {
	Domain     string
	Vcpu       int
	CoreA      int
	CoreB      int
	Interval   time.Duration
	Background bool
}

// Validate checks a spec against the host topology and the domain's vCPU
// count. It performs no host calls.
func Validate(spec Spec, topo topology.Topology, vcpuCount int) error {
	if err := Required(spec); err != nil {
		return err
	}

	for _, core := range []int{spec.CoreA, spec.CoreB} {
		if core < 0 || core >= topo.TotalCores {
			return fmt.Errorf("%w: core %d, host has %d cpus", ErrInvalidCore, core, topo.TotalCores)
		}
	}
	if spec.Vcpu < 0 || spec.Vcpu >= vcpuCount {
		return fmt.Errorf("%w: vcpu %d, domain %s has %d", ErrInvalidVcpu, spec.Vcpu, spec.Domain, vcpuCount)
	}
	return nil
}

// Required reports ErrMissingParameter for every field the caller never
// supplied. It needs neither the topology nor the domain.
func Required(spec Spec) error {
	var missing []string
	if strings.TrimSpace(spec.Domain) == "" {
		missing = append(missing, "domain")
	}
	if spec.Vcpu == Unset {
		missing = append(missing, "vcpu")
	}
	if spec.CoreA == Unset {
		missing = append(missing, "core-a")
	}
	if spec.CoreB == Unset {
		missing = append(missing, "core-b")
	}
	if spec.Interval <= 0 {
		missing = append(missing, "interval")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}
	return nil
}
