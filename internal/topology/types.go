package topology

import "context"

type Source string

const (
	SourceLscpu        Source = "lscpu"
	SourceCapabilities Source = "capabilities"
	SourceSysfs        Source = "sysfs"
	SourceLibvirt      Source = "libvirt"
)

// Topology is a read-once snapshot of the host CPU layout. TotalCores counts
// logical CPUs, so on a fully online host it equals
// Sockets * CoresPerSocket * ThreadsPerCore.
type Topology struct {
	Sockets        int    `json:"sockets"`
	CoresPerSocket int    `json:"cores_per_socket"`
	ThreadsPerCore int    `json:"threads_per_core"`
	TotalCores     int    `json:"total_cores"`
	Source         Source `json:"source,omitempty"`
}

// CPUsPerSocket is the number of logical CPUs on one socket.
func (t Topology) CPUsPerSocket() int {
	return t.CoresPerSocket * t.ThreadsPerCore
}

func (t Topology) HasSMT() bool {
	return t.ThreadsPerCore > 1
}

// SocketCPUs returns the logical CPU indices that belong to socket s under the
// contiguous numbering the placement policies assume.
func (t Topology) SocketCPUs(s int) []int {
	if s < 0 || s >= t.Sockets {
		return nil
	}
	per := t.CPUsPerSocket()
	cpus := make([]int, 0, per)
	for i := 0; i < per; i++ {
		cpus = append(cpus, s*per+i)
	}
	return cpus
}

// Querier is the read-only half of the host capability set.
type Querier interface {
	QueryTopology(ctx context.Context) (Topology, error)
	QueryVcpuCount(ctx context.Context, domain string) (int, error)
}
