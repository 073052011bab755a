package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmanage/cmd"
	"vmanage/internal/config"
	"vmanage/internal/daemon"
	"vmanage/internal/host"
	"vmanage/internal/host/hosttest"
	"vmanage/internal/migrate"
	"vmanage/internal/placement"
	"vmanage/internal/topology"
)

type detachCall struct {
	args    []string
	logFile string
}

func newTestApp(fake *hosttest.Fake, detached *[]detachCall) *app {
	return &app{
		cfg:      config.Default(),
		host:     fake,
		resolver: topology.NewResolver(fake, zerolog.Nop()),
		logger:   zerolog.Nop(),
		detach: func(args []string, logFile string) (int, error) {
			*detached = append(*detached, detachCall{args: args, logFile: logFile})
			return 4242, nil
		},
	}
}

func newFake() *hosttest.Fake {
	return &hosttest.Fake{
		Topology: topology.Topology{Sockets: 2, CoresPerSocket: 4, ThreadsPerCore: 2, TotalCores: 16},
		Vcpus:    map[string]int{"web": 4},
	}
}

func parse(t *testing.T, args ...string) *cmd.Options {
	t.Helper()
	opts, err := cmd.Parse(append([]string{"vmanage"}, args...))
	require.NoError(t, err)
	return opts
}

func TestMigrateWithoutDomainIsMissingParameter(t *testing.T) {
	fake := newFake()
	var detached []detachCall
	a := newTestApp(fake, &detached)

	err := a.migrate(context.Background(), parse(t, "migrate", "-v", "1", "-a", "0", "-b", "4"))
	require.ErrorIs(t, err, migrate.ErrMissingParameter)
	assert.NotErrorIs(t, err, topology.ErrDomainNotFound)
	assert.Equal(t, 2, exitCode(err))
	assert.Empty(t, fake.Pins())
}

func TestMigrateRejectsCoreOutsideHost(t *testing.T) {
	fake := newFake()
	var detached []detachCall
	a := newTestApp(fake, &detached)

	err := a.migrate(context.Background(), parse(t, "migrate", "-d", "web", "-v", "1", "-a", "20", "-b", "4"))
	require.ErrorIs(t, err, migrate.ErrInvalidCore)
	assert.Equal(t, 2, exitCode(err))
	assert.Empty(t, fake.Pins())
	assert.Empty(t, detached)
}

func TestMigrateUnknownDomain(t *testing.T) {
	var detached []detachCall
	a := newTestApp(newFake(), &detached)

	err := a.migrate(context.Background(), parse(t, "migrate", "-d", "db", "-v", "0", "-a", "0", "-b", "1"))
	require.ErrorIs(t, err, topology.ErrDomainNotFound)
	assert.Equal(t, 4, exitCode(err))
}

func TestMigrateBackgroundDetaches(t *testing.T) {
	t.Setenv(daemon.EnvDetached, "")
	fake := newFake()
	var detached []detachCall
	a := newTestApp(fake, &detached)

	err := a.migrate(context.Background(), parse(t, "migrate", "-d", "web", "-v", "1", "-a", "0", "-b", "4", "-B"))
	require.NoError(t, err)
	require.Len(t, detached, 1)
	assert.Equal(t, []string{
		"migrate", "--domain", "web",
		"--vcpu", "1", "--core-a", "0", "--core-b", "4",
		"--background",
	}, detached[0].args)
	assert.Equal(t, a.cfg.Migrate.LogFile, detached[0].logFile)
	assert.Empty(t, fake.Pins())
}

func TestMigrateForegroundStopsWhenCancelled(t *testing.T) {
	t.Setenv(daemon.EnvDetached, "")
	fake := newFake()
	var detached []detachCall
	a := newTestApp(fake, &detached)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.migrate(ctx, parse(t, "migrate", "-d", "web", "-v", "1", "-a", "0", "-b", "4"))
	require.NoError(t, err)
	assert.Empty(t, fake.Pins())
	assert.Empty(t, detached)
}

func TestVcpupinPartialFailure(t *testing.T) {
	fake := newFake()
	fake.PinHook = func(call int, pin hosttest.Pin) error {
		if call == 1 {
			return errors.New("virsh exited 1")
		}
		return nil
	}
	var detached []detachCall
	a := newTestApp(fake, &detached)

	err := a.vcpupin(context.Background(), parse(t, "vcpupin", "-d", "web", "-c"))
	require.ErrorIs(t, err, errPinsFailed)
	assert.Equal(t, 6, exitCode(err))
	assert.Len(t, fake.Pins(), 4)
}

func TestVcpupinDryRunDoesNotPin(t *testing.T) {
	fake := newFake()
	var detached []detachCall
	a := newTestApp(fake, &detached)

	require.NoError(t, a.vcpupin(context.Background(), parse(t, "vcpupin", "-d", "web", "-D", "-n")))
	assert.Empty(t, fake.Pins())
}

func TestVcpupinInvalidSocket(t *testing.T) {
	fake := newFake()
	var detached []detachCall
	a := newTestApp(fake, &detached)

	err := a.vcpupin(context.Background(), parse(t, "vcpupin", "-d", "web", "-s", "2"))
	require.ErrorIs(t, err, placement.ErrInvalidSocket)
	assert.Equal(t, 2, exitCode(err))
	assert.Empty(t, fake.Pins())
}

func TestRunTopologyUnavailable(t *testing.T) {
	fake := newFake()
	fake.TopologyErr = errors.New("lscpu: command not found")
	var detached []detachCall
	a := newTestApp(fake, &detached)

	err := a.run(context.Background(), parse(t, "topology"))
	require.ErrorIs(t, err, topology.ErrTopologyUnavailable)
	assert.Equal(t, 3, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"invalid arguments", fmt.Errorf("%w: --domain is required", cmd.ErrInvalidArguments), 2},
		{"missing parameter", fmt.Errorf("%w: vcpu", migrate.ErrMissingParameter), 2},
		{"invalid vcpu", migrate.ErrInvalidVcpu, 2},
		{"out of range", placement.ErrOutOfRange, 2},
		{"permission inside domain lookup", fmt.Errorf("%w: web: %w", topology.ErrDomainNotFound, host.ErrPermissionDenied), 5},
		{"permission inside topology", fmt.Errorf("%w: %w", topology.ErrTopologyUnavailable, host.ErrPermissionDenied), 5},
		{"os permission", fmt.Errorf("open /sys: %w", os.ErrPermission), 5},
		{"domain not found", fmt.Errorf("%w: db", topology.ErrDomainNotFound), 4},
		{"topology unavailable", topology.ErrTopologyUnavailable, 3},
		{"partial pin failure", errPinsFailed, 6},
		{"anything else", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
