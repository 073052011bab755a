// Package hosttest provides an in-memory host for tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"vmanage/internal/host"
	"vmanage/internal/topology"
)

type Pin struct {
	Domain string
	Vcpu   int
	CPUs   []int
}

// Fake records every SetAffinity call. PinHook, when set, decides the result
// of each call; its argument is the zero-based call number.
type Fake struct {
	Topology    topology.Topology
	TopologyErr error
	Vcpus       map[string]int
	PinHook     func(call int, pin Pin) error

	mu   sync.Mutex
	pins []Pin
}

var _ host.Host = (*Fake)(nil)

func (f *Fake) QueryTopology(ctx context.Context) (topology.Topology, error) {
	if f.TopologyErr != nil {
		return topology.Topology{}, f.TopologyErr
	}
	return f.Topology, nil
}

func (f *Fake) QueryVcpuCount(ctx context.Context, domain string) (int, error) {
	count, ok := f.Vcpus[domain]
	if !ok {
		return 0, fmt.Errorf("%w: %s", topology.ErrDomainNotFound, domain)
	}
	return count, nil
}

func (f *Fake) SetAffinity(ctx context.Context, domain string, vcpu int, cpus []int) error {
	pin := Pin{Domain: domain, Vcpu: vcpu, CPUs: append([]int(nil), cpus...)}
	f.mu.Lock()
	call := len(f.pins)
	f.pins = append(f.pins, pin)
	hook := f.PinHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(call, pin); err != nil {
			return fmt.Errorf("%w: vcpu %d: %w", host.ErrPinFailed, vcpu, err)
		}
	}
	return nil
}

func (f *Fake) Pins() []Pin {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Pin(nil), f.pins...)
}
