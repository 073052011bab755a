//go:build libvirt

package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"libvirt.org/go/libvirt"

	"vmanage/internal/topology"
)

// Libvirt uses the native libvirt binding. The connection is opened lazily
// and reused for the lifetime of the process.
type Libvirt struct {
	uri    string
	mutex  sync.Mutex
	logger zerolog.Logger
	cached *libvirt.Connect
}

func NewLibvirt(uri string, logger zerolog.Logger) (Host, error) {
	return &Libvirt{uri: uri, logger: logger}, nil
}

func (l *Libvirt) acquire() (*libvirt.Connect, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.cached == nil {
		l.logger.Debug().Str("uri", l.uri).Msg("establishing new connection")
		conn, err := libvirt.NewConnect(l.uri)
		if err != nil {
			return nil, classifyLibvirtError(fmt.Errorf("cannot open libvirt connection: %w", err))
		}
		l.cached = conn
	}
	alive, err := l.cached.IsAlive()
	if err != nil {
		return nil, fmt.Errorf("libvirt connection is not alive: %w", err)
	}
	if !alive {
		l.cached = nil
		return nil, errors.New("libvirt connection is not alive")
	}
	return l.cached, nil
}

func (l *Libvirt) lookup(conn *libvirt.Connect, domain string) (*libvirt.Domain, error) {
	var dom *libvirt.Domain
	var err error
	if id, parseErr := uuid.Parse(domain); parseErr == nil {
		dom, err = conn.LookupDomainByUUIDString(id.String())
	} else {
		dom, err = conn.LookupDomainByName(domain)
	}
	if err != nil {
		return nil, classifyLibvirtError(err)
	}
	return dom, nil
}

func (l *Libvirt) QueryTopology(ctx context.Context) (topology.Topology, error) {
	conn, err := l.acquire()
	if err != nil {
		return topology.Topology{}, err
	}
	info, err := conn.GetNodeInfo()
	if err != nil {
		return topology.Topology{}, fmt.Errorf("%w: %v", topology.ErrTopologyUnavailable, err)
	}
	nodes := int(info.Nodes)
	if nodes <= 0 {
		nodes = 1
	}
	return topology.Topology{
		Sockets:        nodes * int(info.Sockets),
		CoresPerSocket: int(info.Cores),
		ThreadsPerCore: int(info.Threads),
		TotalCores:     int(info.Cpus),
		Source:         topology.SourceLibvirt,
	}, nil
}

func (l *Libvirt) QueryVcpuCount(ctx context.Context, domain string) (int, error) {
	conn, err := l.acquire()
	if err != nil {
		return 0, err
	}
	dom, err := l.lookup(conn, domain)
	if err != nil {
		return 0, err
	}
	defer dom.Free()

	count, err := dom.GetVcpusFlags(libvirt.DOMAIN_VCPU_CURRENT)
	if err != nil {
		return 0, classifyLibvirtError(err)
	}
	return int(count), nil
}

func (l *Libvirt) SetAffinity(ctx context.Context, domain string, vcpu int, cpus []int) error {
	if len(cpus) == 0 {
		return fmt.Errorf("%w: vcpu %d: empty cpu list", ErrPinFailed, vcpu)
	}
	conn, err := l.acquire()
	if err != nil {
		return fmt.Errorf("%w: vcpu %d: %w", ErrPinFailed, vcpu, err)
	}
	info, err := conn.GetNodeInfo()
	if err != nil {
		return fmt.Errorf("%w: vcpu %d: %w", ErrPinFailed, vcpu, classifyLibvirtError(err))
	}
	cpuMap := make([]bool, info.Cpus)
	for _, cpu := range cpus {
		if cpu < 0 || cpu >= len(cpuMap) {
			return fmt.Errorf("%w: vcpu %d: host cpu %d out of range", ErrPinFailed, vcpu, cpu)
		}
		cpuMap[cpu] = true
	}

	dom, err := l.lookup(conn, domain)
	if err != nil {
		return fmt.Errorf("%w: vcpu %d: %w", ErrPinFailed, vcpu, err)
	}
	defer dom.Free()

	l.logger.Debug().Str("domain", domain).Int("vcpu", vcpu).Ints("cpus", cpus).Msg("pinning vcpu")
	if err := dom.PinVcpuFlags(uint(vcpu), cpuMap, libvirt.DOMAIN_AFFECT_CURRENT); err != nil {
		return fmt.Errorf("%w: vcpu %d: %w", ErrPinFailed, vcpu, classifyLibvirtError(err))
	}
	return nil
}

func classifyLibvirtError(err error) error {
	var lverr libvirt.Error
	if !errors.As(err, &lverr) {
		return err
	}
	switch lverr.Code {
	case libvirt.ERR_NO_DOMAIN:
		return fmt.Errorf("%w: %s", topology.ErrDomainNotFound, lverr.Message)
	case libvirt.ERR_ACCESS_DENIED, libvirt.ERR_AUTH_FAILED, libvirt.ERR_OPERATION_DENIED:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, lverr.Message)
	}
	return err
}
