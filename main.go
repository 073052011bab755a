package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"vmanage/cmd"
	"vmanage/internal/config"
	"vmanage/internal/daemon"
	"vmanage/internal/host"
	"vmanage/internal/migrate"
	"vmanage/internal/placement"
	"vmanage/internal/topology"
	"vmanage/internal/ui"
)

const program = "vmanage"

// errPinsFailed is returned after a vcpupin run in which some entries could
// not be pinned. The outcomes have already been printed.
var errPinsFailed = errors.New("some vCPUs could not be pinned")

type app struct {
	cfg      *config.Config
	host     host.Host
	resolver *topology.Resolver
	logger   zerolog.Logger
	detach   func(args []string, logFile string) (int, error)
}

func main() {
	opts, err := cmd.Parse(os.Args)
	if err != nil {
		exitWithError(err)
	}
	if err := cmd.Validate(opts); err != nil {
		exitWithError(err)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		exitWithError(fmt.Errorf("%w: %w", cmd.ErrInvalidArguments, err))
	}

	logger, err := newLogger(opts, cfg)
	if err != nil {
		exitWithError(err)
	}

	h, err := host.New(host.Options{
		Backend:        host.BackendKind(cfg.Backend),
		URI:            cfg.URI,
		VirshPath:      cfg.VirshPath,
		LscpuPath:      cfg.LscpuPath,
		TopologySource: topology.Source(cfg.TopologySource),
		SysfsPath:      cfg.SysfsPath,
	}, logger)
	if err != nil {
		exitWithError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:      cfg,
		host:     h,
		resolver: topology.NewResolver(h, logger.With().Str("component", "topology").Logger()),
		logger:   logger,
		detach:   daemon.Detach,
	}
	if err := a.run(ctx, opts); err != nil {
		stop()
		exitWithError(err)
	}
}

func newLogger(opts *cmd.Options, cfg *config.Config) (zerolog.Logger, error) {
	name := cfg.LogLevel
	if opts.LogLevel != "" {
		name = opts.LogLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("%w: log level %q", cmd.ErrInvalidArguments, name)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if daemon.IsDetached() {
		out = os.Stdout
	}
	return zerolog.New(out).With().Timestamp().Logger(), nil
}

func (a *app) run(ctx context.Context, opts *cmd.Options) error {
	if opts.Operation == cmd.OpInteractive {
		topo, err := a.resolver.Resolve(ctx)
		if err != nil {
			return err
		}
		chosen, err := ui.Run(topo)
		if err != nil {
			return err
		}
		if chosen == nil {
			return nil
		}
		chosen.ConfigFile = opts.ConfigFile
		chosen.LogLevel = opts.LogLevel
		if err := cmd.Validate(chosen); err != nil {
			return err
		}
		opts = chosen
	}

	switch opts.Operation {
	case cmd.OpTopology:
		return a.showTopology(ctx, opts)
	case cmd.OpVcpupin:
		return a.vcpupin(ctx, opts)
	case cmd.OpMigrate:
		return a.migrate(ctx, opts)
	default:
		return fmt.Errorf("%w: unknown operation %q", cmd.ErrInvalidArguments, opts.Operation)
	}
}

func (a *app) showTopology(ctx context.Context, opts *cmd.Options) error {
	topo, err := a.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if opts.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(topo)
	}
	ui.PrintTopology(topo)
	return nil
}

func (a *app) vcpupin(ctx context.Context, opts *cmd.Options) error {
	topo, err := a.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	count, err := a.resolver.VcpuCount(ctx, opts.Domain)
	if err != nil {
		return err
	}

	policy := opts.Policy()
	plan, err := placement.Plan(topo, count, policy)
	if err != nil {
		return err
	}
	ui.PrintInvocation(placement.Invocation(program, opts.Domain, policy))

	if opts.DryRun {
		commands := make([]string, 0, len(plan))
		for _, entry := range plan {
			commands = append(commands, host.DescribePin(a.host, opts.Domain, entry.Vcpu, []int{entry.PhysicalCPU}))
		}
		ui.PrintDryRun(opts.Domain, policy, plan, commands)
		return nil
	}

	logger := a.logger.With().Str("component", "placement").Str("policy", policy.String()).Logger()
	outcomes := placement.Apply(ctx, a.host, opts.Domain, plan, logger)
	ui.PrintOutcomes(opts.Domain, policy, plan, outcomes)
	if placement.Failures(outcomes) > 0 {
		return errPinsFailed
	}
	return nil
}

func (a *app) migrate(ctx context.Context, opts *cmd.Options) error {
	spec := opts.MigrateSpec(a.cfg.MigrateInterval())
	if err := migrate.Required(spec); err != nil {
		return err
	}

	topo, err := a.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	count, err := a.resolver.VcpuCount(ctx, spec.Domain)
	if err != nil {
		return err
	}
	if err := migrate.Validate(spec, topo, count); err != nil {
		return err
	}

	if spec.Background && !daemon.IsDetached() {
		pid, err := a.detach(opts.Args(), a.cfg.Migrate.LogFile)
		if err != nil {
			return err
		}
		ui.PrintDetached(pid, a.cfg.Migrate.LogFile)
		return nil
	}

	if !daemon.IsDetached() {
		ui.PrintMigrationStart(spec, strings.Join(append([]string{program}, opts.Args()...), " "))
	}
	logger := a.logger.With().Str("component", "migrate").Str("domain", spec.Domain).Int("vcpu", spec.Vcpu).Logger()
	report := migrate.NewLoop(spec, a.host, logger).Run(ctx)
	if !daemon.IsDetached() {
		ui.PrintMigrationReport(report)
	}
	return nil
}

func isValidationError(err error) bool {
	for _, target := range []error{
		cmd.ErrInvalidArguments,
		placement.ErrInvalidSocket,
		placement.ErrInvalidVcpuCount,
		placement.ErrOutOfRange,
		placement.ErrUnknownStrategy,
		migrate.ErrInvalidCore,
		migrate.ErrInvalidVcpu,
		migrate.ErrMissingParameter,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// exitCode maps an error to the process exit status. Permission problems win
// over the not-found and topology errors they are often wrapped in.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errPinsFailed):
		return 6
	case isValidationError(err):
		return 2
	case errors.Is(err, host.ErrPermissionDenied) || errors.Is(err, os.ErrPermission):
		return 5
	case errors.Is(err, topology.ErrDomainNotFound):
		return 4
	case errors.Is(err, topology.ErrTopologyUnavailable):
		return 3
	default:
		return 1
	}
}

func exitWithError(err error) {
	if err == nil {
		return
	}

	code := exitCode(err)
	switch code {
	case 6:
	case 5:
		ui.PrintError(errors.New("Permission denied. Try running with sudo."))
	case 3:
		ui.PrintError(fmt.Errorf("Cannot read CPU topology: %w", err))
	default:
		ui.PrintError(err)
	}
	os.Exit(code)
}
