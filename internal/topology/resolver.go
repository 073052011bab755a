package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrTopologyUnavailable = errors.New("topology unavailable")
var ErrDomainNotFound = errors.New("domain not found")

// Resolver reads the host topology and domain vCPU counts through a Querier
// and rejects answers the planner cannot work with.
type Resolver struct {
	querier Querier
	logger  zerolog.Logger
}

func NewResolver(querier Querier, logger zerolog.Logger) *Resolver {
	return &Resolver{querier: querier, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context) (Topology, error) {
	topo, err := r.querier.QueryTopology(ctx)
	if err != nil {
		if errors.Is(err, ErrTopologyUnavailable) {
			return Topology{}, err
		}
		return Topology{}, fmt.Errorf("%w: %w", ErrTopologyUnavailable, err)
	}
	if err := Check(topo); err != nil {
		return Topology{}, err
	}
	r.logger.Debug().
		Int("sockets", topo.Sockets).
		Int("cores_per_socket", topo.CoresPerSocket).
		Int("threads_per_core", topo.ThreadsPerCore).
		Int("total", topo.TotalCores).
		Str("source", string(topo.Source)).
		Msg("resolved host topology")
	return topo, nil
}

func (r *Resolver) VcpuCount(ctx context.Context, domain string) (int, error) {
	if strings.TrimSpace(domain) == "" {
		return 0, fmt.Errorf("%w: empty domain name", ErrDomainNotFound)
	}
	count, err := r.querier.QueryVcpuCount(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrDomainNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrDomainNotFound, domain, err)
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: %s reports no vCPUs", ErrDomainNotFound, domain)
	}
	r.logger.Debug().Str("domain", domain).Int("vcpus", count).Msg("resolved domain vCPU count")
	return count, nil
}

// Check reports ErrTopologyUnavailable unless every count is positive.
func Check(topo Topology) error {
	var missing []string
	if topo.Sockets <= 0 {
		missing = append(missing, "sockets")
	}
	if topo.CoresPerSocket <= 0 {
		missing = append(missing, "cores per socket")
	}
	if topo.ThreadsPerCore <= 0 {
		missing = append(missing, "threads per core")
	}
	if topo.TotalCores <= 0 {
		missing = append(missing, "total cpus")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrTopologyUnavailable, strings.Join(missing, ", "))
	}
	return nil
}
