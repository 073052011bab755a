package placement

import (
	"errors"
	"fmt"

	"vmanage/internal/topology"
)

var ErrInvalidSocket = errors.New("invalid socket")
var ErrInvalidVcpuCount = errors.New("invalid vcpu count")
var ErrOutOfRange = errors.New("physical cpu out of range")
var ErrUnknownStrategy = errors.New("unknown placement strategy")

// Plan maps every vCPU of a domain to one physical CPU.
//
// same-core hands out the first thread of successive cores of socket 0,
// wrapping after the last core. distribute walks the sockets round-robin and
// uses the vCPU index as the offset inside the chosen socket. socket confines
// the same offset to one socket. identity maps vCPU i to CPU i.
func Plan(topo topology.Topology, vcpuCount int, policy Policy) (Map, error) {
	if err := topology.Check(topo); err != nil {
		return nil, err
	}
	perSocket := topo.CPUsPerSocket()

	var place func(i int) int
	switch policy.Strategy {
	case StrategySameCore:
		coreIndex := 0
		place = func(int) int {
			cpu := coreIndex * topo.ThreadsPerCore
			coreIndex = (coreIndex + 1) % topo.CoresPerSocket
			return cpu
		}
	case StrategyDistribute:
		socketIndex := 0
		place = func(i int) int {
			cpu := socketIndex*perSocket + i%perSocket
			socketIndex = (socketIndex + 1) % topo.Sockets
			return cpu
		}
	case StrategySocket:
		if policy.Socket < 0 || policy.Socket >= topo.Sockets {
			return nil, fmt.Errorf("%w: socket %d, host has %d", ErrInvalidSocket, policy.Socket, topo.Sockets)
		}
		place = func(i int) int {
			return policy.Socket*perSocket + i%perSocket
		}
	case StrategyIdentity:
		place = func(i int) int { return i }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, policy.Strategy)
	}
	if vcpuCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVcpuCount, vcpuCount)
	}

	m := make(Map, 0, vcpuCount)
	for i := 0; i < vcpuCount; i++ {
		cpu := place(i)
		if cpu < 0 || cpu >= topo.TotalCores {
			return nil, fmt.Errorf("%w: vcpu %d -> cpu %d, host has %d cpus", ErrOutOfRange, i, cpu, topo.TotalCores)
		}
		m = append(m, Entry{Vcpu: i, PhysicalCPU: cpu})
	}
	return m, nil
}

// CPUs returns the physical CPU of every entry in vCPU order.
func (m Map) CPUs() []int {
	cpus := make([]int, len(m))
	for i, e := range m {
		cpus[i] = e.PhysicalCPU
	}
	return cpus
}
