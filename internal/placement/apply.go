package placement

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Apply pins each entry in order. A failed pin is logged and recorded in its
// Outcome; the remaining entries are still attempted.
func Apply(ctx context.Context, pinner Pinner, domain string, m Map, logger zerolog.Logger) []Outcome {
	outcomes := make([]Outcome, 0, len(m))
	for _, entry := range m {
		err := pinner.SetAffinity(ctx, domain, entry.Vcpu, []int{entry.PhysicalCPU})
		outcome := Outcome{Vcpu: entry.Vcpu, PhysicalCPU: entry.PhysicalCPU, OK: err == nil, Err: err}
		if err != nil {
			logger.Error().Err(err).Str("domain", domain).Int("vcpu", entry.Vcpu).Int("cpu", entry.PhysicalCPU).Msg("pin failed")
		} else {
			logger.Info().Str("domain", domain).Int("vcpu", entry.Vcpu).Int("cpu", entry.PhysicalCPU).Msg("pinned")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func Failures(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.OK {
			n++
		}
	}
	return n
}

// Invocation renders the non-interactive command line that reproduces a
// placement run.
func Invocation(program, domain string, policy Policy) string {
	parts := []string{program, "vcpupin", "--domain", domain}
	switch policy.Strategy {
	case StrategySameCore:
		parts = append(parts, "--same-core")
	case StrategyDistribute:
		parts = append(parts, "--distribute")
	case StrategySocket:
		parts = append(parts, "--socket", fmt.Sprint(policy.Socket))
	}
	return strings.Join(parts, " ")
}
