package placement

import (
	"context"
	"fmt"
)

type Strategy string

const (
	StrategySameCore   Strategy = "same-core"
	StrategyDistribute Strategy = "distribute"
	StrategySocket     Strategy = "socket"
	StrategyIdentity   Strategy = "identity"
)

// Policy selects one placement strategy. Socket is only meaningful for
// StrategySocket.
type Policy struct {
	Strategy Strategy
	Socket   int
}

func SameCore() Policy         { return Policy{Strategy: StrategySameCore} }
func Distribute() Policy       { return Policy{Strategy: StrategyDistribute} }
func FixedSocket(s int) Policy { return Policy{Strategy: StrategySocket, Socket: s} }
func Identity() Policy         { return Policy{Strategy: StrategyIdentity} }

func (p Policy) String() string {
	if p.Strategy == StrategySocket {
		return fmt.Sprintf("socket %d", p.Socket)
	}
	return string(p.Strategy)
}

type Entry struct {
	Vcpu        int `json:"vcpu"`
	PhysicalCPU int `json:"physical_cpu"`
}

// Map is ordered by vCPU index, starting at zero.
type Map []Entry

type Outcome struct {
	Vcpu        int
	PhysicalCPU int
	OK          bool
	Err         error
}

// Pinner is the write half of the host capability set.
type Pinner interface {
	SetAffinity(ctx context.Context, domain string, vcpu int, cpus []int) error
}
