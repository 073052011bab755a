package host

import (
	"errors"
	"fmt"

	"libvirt.org/go/libvirtxml"

	"vmanage/internal/topology"
)

// parseDomainVcpus returns the active vCPU count from `virsh dumpxml`. The
// current attribute wins over the maximum in the element body.
func parseDomainVcpus(domainXML string) (int, error) {
	dom := &libvirtxml.Domain{}
	if err := dom.Unmarshal(domainXML); err != nil {
		return 0, fmt.Errorf("cannot parse domain xml: %w", err)
	}
	if dom.VCPU == nil {
		return 0, errors.New("domain xml has no vcpu element")
	}
	if dom.VCPU.Current > 0 {
		return int(dom.VCPU.Current), nil
	}
	return int(dom.VCPU.Value), nil
}

// parseCapabilities derives a Topology from `virsh capabilities`. Socket ids
// come from the NUMA cell listing when present because the <topology>
// element counts sockets per NUMA node.
func parseCapabilities(capsXML string) (topology.Topology, error) {
	caps := &libvirtxml.Caps{}
	if err := caps.Unmarshal(capsXML); err != nil {
		return topology.Topology{}, fmt.Errorf("%w: cannot parse capabilities: %v", topology.ErrTopologyUnavailable, err)
	}
	if caps.Host.CPU == nil || caps.Host.CPU.Topology == nil {
		return topology.Topology{}, fmt.Errorf("%w: capabilities have no host cpu topology", topology.ErrTopologyUnavailable)
	}
	hostTopo := caps.Host.CPU.Topology
	dies := hostTopo.Dies
	if dies <= 0 {
		dies = 1
	}

	topo := topology.Topology{
		CoresPerSocket: hostTopo.Cores * dies,
		ThreadsPerCore: hostTopo.Threads,
		Source:         topology.SourceCapabilities,
	}

	sockets := map[int]struct{}{}
	cells := 0
	if caps.Host.NUMA != nil && caps.Host.NUMA.Cells != nil {
		for _, cell := range caps.Host.NUMA.Cells.Cells {
			cells++
			if cell.CPUS == nil {
				continue
			}
			for _, cpu := range cell.CPUS.CPUs {
				topo.TotalCores++
				if cpu.SocketID != nil {
					sockets[*cpu.SocketID] = struct{}{}
				}
			}
		}
	}

	switch {
	case len(sockets) > 0:
		topo.Sockets = len(sockets)
	case cells > 0:
		topo.Sockets = hostTopo.Sockets * cells
	default:
		topo.Sockets = hostTopo.Sockets
	}
	if topo.TotalCores == 0 {
		topo.TotalCores = topo.Sockets * topo.CoresPerSocket * topo.ThreadsPerCore
	}

	if err := topology.Check(topo); err != nil {
		return topology.Topology{}, err
	}
	return topo, nil
}
