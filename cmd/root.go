package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/google/uuid"

	"vmanage/internal/migrate"
	"vmanage/internal/placement"
)

type Operation string

const (
	OpInteractive Operation = "interactive"
	OpTopology    Operation = "topology"
	OpVcpupin     Operation = "vcpupin"
	OpMigrate     Operation = "migrate"
)

// Options is the fully populated request handed to the core, whether it came
// from the command line or from the interactive wizard.
type Options struct {
	Operation  Operation
	ConfigFile string
	LogLevel   string
	Domain     string

	JSON bool

	Socket     int
	SameCore   bool
	Distribute bool
	Identity   bool
	DryRun     bool

	Vcpu       int
	CoreA      int
	CoreB      int
	Interval   int
	Background bool
}

var ErrInvalidArguments = errors.New("invalid arguments")

func NewOptions(op Operation) *Options {
	return &Options{
		Operation: op,
		Socket:    migrate.Unset,
		Vcpu:      migrate.Unset,
		CoreA:     migrate.Unset,
		CoreB:     migrate.Unset,
	}
}

// Parse reads os.Args-style arguments. A bare program name selects the
// interactive wizard.
func Parse(args []string) (*Options, error) {
	if len(args) <= 1 {
		return NewOptions(OpInteractive), nil
	}

	parser := argparse.NewParser("vmanage", "Pin and migrate libvirt guest vCPUs")
	configFile := parser.String("f", "config", &argparse.Options{Help: "Configuration file path"})
	logLevel := parser.String("l", "log-level", &argparse.Options{Help: "Log level: debug, info, warn, error"})

	topoCmd := parser.NewCommand("topology", "Show the host CPU topology")
	jsonOut := topoCmd.Flag("j", "json", &argparse.Options{Help: "Output in JSON format"})

	pinCmd := parser.NewCommand("vcpupin", "Pin every vCPU of a domain according to a placement policy")
	pinDomain := pinCmd.String("d", "domain", &argparse.Options{Help: "Domain name or UUID"})
	socket := pinCmd.Int("s", "socket", &argparse.Options{Default: migrate.Unset, Help: "Confine all vCPUs to this socket"})
	sameCore := pinCmd.Flag("c", "same-core", &argparse.Options{Help: "Place vCPUs on successive cores of socket 0"})
	distribute := pinCmd.Flag("D", "distribute", &argparse.Options{Help: "Spread vCPUs round-robin across sockets"})
	identity := pinCmd.Flag("i", "identity", &argparse.Options{Help: "Pin vCPU N to CPU N (default)"})
	dryRun := pinCmd.Flag("n", "dry-run", &argparse.Options{Help: "Show the plan without pinning"})

	migCmd := parser.NewCommand("migrate", "Alternate one vCPU between two cores")
	migDomain := migCmd.String("d", "domain", &argparse.Options{Help: "Domain name or UUID"})
	vcpu := migCmd.Int("v", "vcpu", &argparse.Options{Default: migrate.Unset, Help: "vCPU index to migrate"})
	coreA := migCmd.Int("a", "core-a", &argparse.Options{Default: migrate.Unset, Help: "First host CPU"})
	coreB := migCmd.Int("b", "core-b", &argparse.Options{Default: migrate.Unset, Help: "Second host CPU"})
	interval := migCmd.Int("t", "interval", &argparse.Options{Default: 0, Help: "Seconds between switches (default from config)"})
	background := migCmd.Flag("B", "background", &argparse.Options{Help: "Detach and keep running after the shell exits"})

	if err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, parser.Usage(err))
	}

	var opts *Options
	switch {
	case topoCmd.Happened():
		opts = NewOptions(OpTopology)
		opts.JSON = *jsonOut
	case pinCmd.Happened():
		opts = NewOptions(OpVcpupin)
		opts.Domain = *pinDomain
		opts.Socket = *socket
		opts.SameCore = *sameCore
		opts.Distribute = *distribute
		opts.Identity = *identity
		opts.DryRun = *dryRun
	case migCmd.Happened():
		opts = NewOptions(OpMigrate)
		opts.Domain = *migDomain
		opts.Vcpu = *vcpu
		opts.CoreA = *coreA
		opts.CoreB = *coreB
		opts.Interval = *interval
		opts.Background = *background
	default:
		return nil, fmt.Errorf("%w: a command is required (topology, vcpupin, migrate)", ErrInvalidArguments)
	}
	opts.ConfigFile = *configFile
	opts.LogLevel = *logLevel
	return opts, nil
}

// Validate checks flag combinations. Range checks that need the host
// topology belong to the placement and migrate packages.
func Validate(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are required", ErrInvalidArguments)
	}

	switch opts.Operation {
	case OpInteractive, OpTopology:
		return nil
	case OpVcpupin:
		if strings.TrimSpace(opts.Domain) == "" {
			return fmt.Errorf("%w: --domain is required for vcpupin", ErrInvalidArguments)
		}
		selected := 0
		for _, set := range []bool{opts.Socket != migrate.Unset, opts.SameCore, opts.Distribute, opts.Identity} {
			if set {
				selected++
			}
		}
		if selected > 1 {
			return fmt.Errorf("%w: --socket, --same-core, --distribute and --identity are mutually exclusive", ErrInvalidArguments)
		}
	case OpMigrate:
		if strings.TrimSpace(opts.Domain) == "" {
			return fmt.Errorf("%w: %w: --domain is required for migrate", ErrInvalidArguments, migrate.ErrMissingParameter)
		}
		if opts.DryRun {
			return fmt.Errorf("%w: --dry-run is only valid for vcpupin", ErrInvalidArguments)
		}
		if opts.Interval < 0 {
			return fmt.Errorf("%w: --interval must be positive", ErrInvalidArguments)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidArguments, opts.Operation)
	}

	if id, err := uuid.Parse(opts.Domain); err == nil {
		opts.Domain = id.String()
	}
	return nil
}

// Policy returns the selected placement policy, identity when none is set.
func (o *Options) Policy() placement.Policy {
	switch {
	case o.Socket != migrate.Unset:
		return placement.FixedSocket(o.Socket)
	case o.SameCore:
		return placement.SameCore()
	case o.Distribute:
		return placement.Distribute()
	default:
		return placement.Identity()
	}
}

// MigrateSpec builds the loop spec, falling back to defaultInterval when no
// interval was given.
func (o *Options) MigrateSpec(defaultInterval time.Duration) migrate.Spec {
	interval := time.Duration(o.Interval) * time.Second
	if o.Interval == 0 {
		interval = defaultInterval
	}
	return migrate.Spec{
		Domain:     o.Domain,
		Vcpu:       o.Vcpu,
		CoreA:      o.CoreA,
		CoreB:      o.CoreB,
		Interval:   interval,
		Background: o.Background,
	}
}

// Args renders the options back into command line arguments, without the
// program name. Unset values are omitted.
func (o *Options) Args() []string {
	var args []string
	if o.ConfigFile != "" {
		args = append(args, "--config", o.ConfigFile)
	}
	if o.LogLevel != "" {
		args = append(args, "--log-level", o.LogLevel)
	}

	switch o.Operation {
	case OpTopology:
		args = append(args, "topology")
		if o.JSON {
			args = append(args, "--json")
		}
	case OpVcpupin:
		args = append(args, "vcpupin", "--domain", o.Domain)
		switch {
		case o.Socket != migrate.Unset:
			args = append(args, "--socket", strconv.Itoa(o.Socket))
		case o.SameCore:
			args = append(args, "--same-core")
		case o.Distribute:
			args = append(args, "--distribute")
		case o.Identity:
			args = append(args, "--identity")
		}
		if o.DryRun {
			args = append(args, "--dry-run")
		}
	case OpMigrate:
		args = append(args, "migrate", "--domain", o.Domain)
		for _, f := range []struct {
			name  string
			value int
		}{{"--vcpu", o.Vcpu}, {"--core-a", o.CoreA}, {"--core-b", o.CoreB}} {
			if f.value != migrate.Unset {
				args = append(args, f.name, strconv.Itoa(f.value))
			}
		}
		if o.Interval > 0 {
			args = append(args, "--interval", strconv.Itoa(o.Interval))
		}
		if o.Background {
			args = append(args, "--background")
		}
	}
	return args
}
