package migrate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type State int

const (
	AtCoreA State = iota
	AtCoreB
)

func (s State) String() string {
	if s == AtCoreB {
		return "core-b"
	}
	return "core-a"
}

// Pinner is the single host capability the loop needs.
type Pinner interface {
	SetAffinity(ctx context.Context, domain string, vcpu int, cpus []int) error
}

type Report struct {
	HalfCycles int
	Failures   int
	// LastState is the state the most recent half-cycle targeted.
	LastState State
}

// Loop alternates one vCPU between two cores until its context ends.
type Loop struct {
	spec   Spec
	pinner Pinner
	logger zerolog.Logger
	after  func(time.Duration) <-chan time.Time
}

func NewLoop(spec Spec, pinner Pinner, logger zerolog.Logger) *Loop {
	return &Loop{spec: spec, pinner: pinner, logger: logger, after: time.After}
}

// Run drives the two-state machine: pin to the target core, log, sleep,
// flip. Pin failures are logged and counted, never fatal. The first
// half-cycle targets CoreA.
func (l *Loop) Run(ctx context.Context) Report {
	var report Report
	target := AtCoreA
	for {
		if ctx.Err() != nil {
			return report
		}

		core := l.coreFor(target)
		err := l.pinner.SetAffinity(ctx, l.spec.Domain, l.spec.Vcpu, []int{core})
		report.HalfCycles++
		report.LastState = target
		if err != nil {
			if ctx.Err() != nil {
				return report
			}
			report.Failures++
			l.logger.Error().Err(err).
				Str("domain", l.spec.Domain).
				Int("vcpu", l.spec.Vcpu).
				Int("core", core).
				Str("state", target.String()).
				Msg("migration step failed")
		} else {
			l.logger.Info().
				Str("domain", l.spec.Domain).
				Int("vcpu", l.spec.Vcpu).
				Int("core", core).
				Str("state", target.String()).
				Msg("migrated vcpu")
		}

		select {
		case <-ctx.Done():
			return report
		case <-l.after(l.spec.Interval):
		}
		target = flip(target)
	}
}

func (l *Loop) coreFor(s State) int {
	if s == AtCoreB {
		return l.spec.CoreB
	}
	return l.spec.CoreA
}

func flip(s State) State {
	if s == AtCoreA {
		return AtCoreB
	}
	return AtCoreA
}
