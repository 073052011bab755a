package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyGivesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, time.Minute, cfg.MigrateInterval())
}

func TestParseMergesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level = "debug"
backend = "libvirt"
uri = "qemu+ssh://root@kvm1/system"

migrate {
  interval = 30
}
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "libvirt", cfg.Backend)
	assert.Equal(t, "qemu+ssh://root@kvm1/system", cfg.URI)
	assert.Equal(t, "virsh", cfg.VirshPath)
	assert.Equal(t, "lscpu", cfg.TopologySource)
	assert.Equal(t, 30*time.Second, cfg.MigrateInterval())
	assert.Equal(t, "/var/log/vmanage-migrate.log", cfg.Migrate.LogFile)
}

func TestParseInvalid(t *testing.T) {
	for _, content := range []string{
		`log_level = "debug`,
		"migrate {\n  interval = 30\n",
	} {
		_, err := Parse([]byte(content))
		assert.ErrorContains(t, err, "invalid configuration format", "%q", content)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend = "LIBVIRT"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "libvirt", cfg.Backend)

	cfg = Default()
	cfg.Backend = "xen"
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.TopologySource = "dmidecode"
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.Migrate.Interval = -5
	assert.Error(t, cfg.validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("VMANAGE_CONFIG", "")
	t.Setenv("VMANAGE_URI", "")
	t.Setenv("VMANAGE_LOG_LEVEL", "")
	t.Setenv("VMANAGE_BACKEND", "")

	path := filepath.Join(t.TempDir(), "vmanage.conf")
	require.NoError(t, os.WriteFile(path, []byte("topology_source = \"sysfs\"\nlog_level = \"warn\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sysfs", cfg.TopologySource)
	assert.Equal(t, "warn", cfg.LogLevel)

	t.Setenv("VMANAGE_LOG_LEVEL", "error")
	t.Setenv("VMANAGE_URI", "qemu:///session")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "qemu:///session", cfg.URI)

	_, err = Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestLoadFromEnvironmentPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.conf")
	require.NoError(t, os.WriteFile(path, []byte("backend = \"libvirt\"\n"), 0o644))
	t.Setenv("VMANAGE_CONFIG", path)
	t.Setenv("VMANAGE_BACKEND", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "libvirt", cfg.Backend)

	t.Setenv("VMANAGE_CONFIG", filepath.Join(t.TempDir(), "missing.conf"))
	_, err = Load("")
	assert.Error(t, err)
}

func TestGetenvDefault(t *testing.T) {
	t.Setenv("VMANAGE_TEST_VALUE", "")
	assert.Equal(t, "fallback", GetenvDefault("VMANAGE_TEST_VALUE", "fallback"))
	t.Setenv("VMANAGE_TEST_VALUE", "set")
	assert.Equal(t, "set", GetenvDefault("VMANAGE_TEST_VALUE", "fallback"))
}

func TestLoadRejectsMalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VMANAGE-URI=qemu:///system\n"), 0o644))
	chdir(t, dir)
	t.Setenv("VMANAGE_CONFIG", "")

	_, err := Load("")
	assert.ErrorContains(t, err, "cannot load .env file")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VMANAGE_BACKEND=libvirt\n"), 0o644))
	path := filepath.Join(dir, "vmanage.conf")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"info\"\n"), 0o644))
	chdir(t, dir)
	t.Setenv("VMANAGE_BACKEND", "")
	require.NoError(t, os.Unsetenv("VMANAGE_BACKEND"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "libvirt", cfg.Backend)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
