package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmanage/cmd"
	"vmanage/internal/migrate"
	"vmanage/internal/topology"
)

var wizardTopology = topology.Topology{Sockets: 2, CoresPerSocket: 4, ThreadsPerCore: 2, TotalCores: 16, Source: topology.SourceLscpu}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func typed(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func drive(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestWizardVcpupinFixedSocket(t *testing.T) {
	m := drive(t, NewModel(wizardTopology),
		keyEnter,            // pin vCPUs
		typed("web"), keyEnter,
		keyDown, keyDown, keyDown, keyEnter, // fixed socket
		keyDown, keyEnter, // socket 1
	)
	require.Equal(t, stepConfirm, m.step)
	assert.Equal(t, "vmanage vcpupin --domain web --socket 1", m.Command())

	m = drive(t, m, keyEnter)
	opts := m.Options()
	require.NotNil(t, opts)
	assert.Equal(t, cmd.OpVcpupin, opts.Operation)
	assert.Equal(t, "web", opts.Domain)
	assert.Equal(t, 1, opts.Socket)
	assert.NoError(t, cmd.Validate(opts))
}

func TestWizardMigrate(t *testing.T) {
	m := drive(t, NewModel(wizardTopology),
		keyDown, keyEnter, // migrate
		typed("db"), keyEnter,
		typed("1"), keyEnter,
		typed("0"), keyEnter,
		typed("4"), keyEnter,
		keyEnter,          // default interval
		keyDown, keyEnter, // background
		keyEnter,          // confirm
	)
	opts := m.Options()
	require.NotNil(t, opts)
	assert.Equal(t, cmd.OpMigrate, opts.Operation)
	assert.Equal(t, "db", opts.Domain)
	assert.Equal(t, 1, opts.Vcpu)
	assert.Equal(t, 0, opts.CoreA)
	assert.Equal(t, 4, opts.CoreB)
	assert.Equal(t, 0, opts.Interval)
	assert.True(t, opts.Background)
	assert.Equal(t, migrate.Unset, opts.Socket)
}

func TestWizardRejectsBadInput(t *testing.T) {
	m := drive(t, NewModel(wizardTopology),
		keyDown, keyEnter,
		keyEnter, // empty domain
	)
	assert.Equal(t, stepDomain, m.step)
	assert.NotEmpty(t, m.problem)

	m = drive(t, m, typed("db"), keyEnter, typed("1"), keyEnter, typed("16"), keyEnter)
	assert.Equal(t, stepCoreA, m.step)
	assert.Contains(t, m.problem, "16")
}

func TestWizardBackAndCancel(t *testing.T) {
	m := drive(t, NewModel(wizardTopology), keyEnter, typed("web"), keyEnter)
	require.Equal(t, stepPolicy, m.step)

	m = drive(t, m, keyEsc)
	assert.Equal(t, stepDomain, m.step)

	m = drive(t, m, keyEsc, keyDown, keyDown, typed("q"))
	assert.Nil(t, m.Options())
	assert.True(t, m.aborted)
}

func TestWizardTopologyNeedsNoDomain(t *testing.T) {
	m := drive(t, NewModel(wizardTopology), keyDown, keyDown, keyEnter)
	require.Equal(t, stepConfirm, m.step)
	assert.Equal(t, "vmanage topology", m.Command())

	m = drive(t, m, keyDown, keyEnter)
	assert.Nil(t, m.Options())
}

func TestRenderTopology(t *testing.T) {
	out := RenderTopology(wizardTopology)
	assert.Contains(t, out, "0-7")
	assert.Contains(t, out, "8-15")
	assert.Contains(t, out, "lscpu")
}
