package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmanage/internal/topology"
)

const lscpuDualSocket = `Architecture:                    x86_64
CPU op-mode(s):                  32-bit, 64-bit
Byte Order:                      Little Endian
CPU(s):                          32
On-line CPU(s) list:             0-31
Thread(s) per core:              2
Core(s) per socket:              8
Socket(s):                       2
NUMA node(s):                    2
Vendor ID:                       GenuineIntel
Model name:                      Intel(R) Xeon(R) CPU E5-2630 v3 @ 2.40GHz
NUMA node0 CPU(s):               0-7,16-23
NUMA node1 CPU(s):               8-15,24-31
`

func TestParseLscpu(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    topology.Topology
		wantErr bool
	}{
		{
			name:   "dual socket with smt",
			output: lscpuDualSocket,
			want: topology.Topology{
				Sockets:        2,
				CoresPerSocket: 8,
				ThreadsPerCore: 2,
				TotalCores:     32,
				Source:         topology.SourceLscpu,
			},
		},
		{
			name:   "single socket without smt",
			output: "CPU(s): 4\nSocket(s): 1\nCore(s) per socket: 4\nThread(s) per core: 1\n",
			want: topology.Topology{
				Sockets:        1,
				CoresPerSocket: 4,
				ThreadsPerCore: 1,
				TotalCores:     4,
				Source:         topology.SourceLscpu,
			},
		},
		{
			name:    "missing socket count",
			output:  "CPU(s): 4\nCore(s) per socket: 4\nThread(s) per core: 1\n",
			wantErr: true,
		},
		{
			name:    "non numeric value",
			output:  "CPU(s): many\nSocket(s): 1\nCore(s) per socket: 4\nThread(s) per core: 1\n",
			wantErr: true,
		},
		{
			name:    "empty output",
			output:  "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := topology.ParseLscpu([]byte(tt.output))
			if tt.wantErr {
				require.ErrorIs(t, err, topology.ErrTopologyUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopologyHelpers(t *testing.T) {
	topo := topology.Topology{Sockets: 2, CoresPerSocket: 4, ThreadsPerCore: 2, TotalCores: 16}

	assert.Equal(t, 8, topo.CPUsPerSocket())
	assert.True(t, topo.HasSMT())
	assert.Equal(t, []int{8, 9, 10, 11, 12, 13, 14, 15}, topo.SocketCPUs(1))
	assert.Nil(t, topo.SocketCPUs(2))
	assert.Nil(t, topo.SocketCPUs(-1))
}
