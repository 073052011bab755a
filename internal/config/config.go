package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/imdario/mergo"
	"github.com/joho/godotenv"
)

const DefaultPath = "/etc/vmanage/vmanage.conf"

type MigrateConfig struct {
	Interval int    `hcl:"interval"`
	LogFile  string `hcl:"log_file"`
}

type Config struct {
	LogLevel       string        `hcl:"log_level"`
	Backend        string        `hcl:"backend"`
	URI            string        `hcl:"uri"`
	VirshPath      string        `hcl:"virsh_path"`
	LscpuPath      string        `hcl:"lscpu_path"`
	TopologySource string        `hcl:"topology_source"`
	SysfsPath      string        `hcl:"sysfs_path"`
	Migrate        MigrateConfig `hcl:"migrate"`
}

func Default() *Config {
	return &Config{
		LogLevel:       "info",
		Backend:        "virsh",
		VirshPath:      "virsh",
		LscpuPath:      "lscpu",
		TopologySource: "lscpu",
		SysfsPath:      "/sys/devices/system/cpu",
		Migrate: MigrateConfig{
			Interval: 60,
			LogFile:  "/var/log/vmanage-migrate.log",
		},
	}
}

func (c *Config) MigrateInterval() time.Duration {
	return time.Duration(c.Migrate.Interval) * time.Second
}

// Load reads the .env file (if any), resolves the config path and parses it.
// An explicit path must exist; the default path may be absent.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env file: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = GetenvDefault("VMANAGE_CONFIG", DefaultPath)
		explicit = os.Getenv("VMANAGE_CONFIG") != ""
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		content = nil
	default:
		return nil, fmt.Errorf("cannot read configuration file: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, cfg.validate()
}

func Parse(content []byte) (*Config, error) {
	cfg := &Config{}
	if len(content) > 0 {
		if err := hcl.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration format: %w", err)
		}
	}
	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, fmt.Errorf("cannot apply default configuration value: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VMANAGE_URI"); v != "" {
		cfg.URI = v
	}
	if v := os.Getenv("VMANAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VMANAGE_BACKEND"); v != "" {
		cfg.Backend = v
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Backend) {
	case "virsh", "libvirt":
		c.Backend = strings.ToLower(c.Backend)
	default:
		return fmt.Errorf("unknown backend %q (valid: virsh, libvirt)", c.Backend)
	}
	switch c.TopologySource {
	case "lscpu", "capabilities", "sysfs":
	default:
		return fmt.Errorf("unknown topology_source %q (valid: lscpu, capabilities, sysfs)", c.TopologySource)
	}
	if c.Migrate.Interval < 0 {
		return fmt.Errorf("migrate interval must not be negative, got %d", c.Migrate.Interval)
	}
	return nil
}

func GetenvDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
