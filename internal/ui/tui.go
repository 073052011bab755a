package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vmanage/cmd"
	"vmanage/internal/migrate"
	"vmanage/internal/placement"
	"vmanage/internal/topology"
)

type step int

const (
	stepOperation step = iota
	stepDomain
	stepPolicy
	stepSocket
	stepVcpu
	stepCoreA
	stepCoreB
	stepInterval
	stepBackground
	stepConfirm
	stepDone
)

var operations = []struct {
	op   cmd.Operation
	name string
	desc string
}{
	{cmd.OpVcpupin, "Pin vCPUs", "Apply a placement policy to every vCPU of a domain"},
	{cmd.OpMigrate, "Migrate a vCPU", "Alternate one vCPU between two host CPUs"},
	{cmd.OpTopology, "Show topology", "Print the host CPU layout and exit"},
}

var policies = []struct {
	strategy placement.Strategy
	name     string
	desc     string
}{
	{placement.StrategyIdentity, "Identity", "vCPU N runs on CPU N"},
	{placement.StrategySameCore, "Same core", "Successive cores of socket 0, first thread of each"},
	{placement.StrategyDistribute, "Distribute", "Round-robin across sockets"},
	{placement.StrategySocket, "Fixed socket", "Confine every vCPU to one socket"},
}

// Model collects a cmd.Options value step by step. It never touches the
// host; the caller runs the result through the normal command path.
type Model struct {
	topo    topology.Topology
	step    step
	history []step
	cursor  int
	input   textinput.Model
	opts    cmd.Options
	problem string
	aborted bool
}

func NewModel(topo topology.Topology) Model {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Width = 40
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5"))
	ti.PromptStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		topo:  topo,
		step:  stepOperation,
		input: ti,
		opts:  *cmd.NewOptions(cmd.OpInteractive),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Options returns the collected options, or nil when the wizard was
// cancelled or has not finished.
func (m Model) Options() *cmd.Options {
	if m.aborted || m.step != stepDone {
		return nil
	}
	opts := m.opts
	return &opts
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.isInputStep() {
			var c tea.Cmd
			m.input, c = m.input.Update(msg)
			return m, c
		}
		return m, nil
	}

	switch key.String() {
	case "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	case "esc":
		return m.back()
	case "enter":
		return m.handleEnter()
	}

	if m.isInputStep() {
		var c tea.Cmd
		m.input, c = m.input.Update(msg)
		return m, c
	}

	switch key.String() {
	case "q":
		m.aborted = true
		return m, tea.Quit
	case "up", "k":
		m.cursor = wrap(m.cursor-1, m.choices())
	case "down", "j":
		m.cursor = wrap(m.cursor+1, m.choices())
	}
	return m, nil
}

func (m Model) isInputStep() bool {
	switch m.step {
	case stepDomain, stepVcpu, stepCoreA, stepCoreB, stepInterval:
		return true
	}
	return false
}

func (m Model) choices() int {
	switch m.step {
	case stepOperation:
		return len(operations)
	case stepPolicy:
		return len(policies)
	case stepSocket:
		return m.topo.Sockets
	case stepBackground, stepConfirm:
		return 2
	}
	return 0
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return (i%n + n) % n
}

func (m Model) advance(next step) (tea.Model, tea.Cmd) {
	m.history = append(m.history, m.step)
	m.step = next
	m.cursor = 0
	m.problem = ""
	if m.isInputStep() {
		m.input.SetValue("")
		return m, m.input.Focus()
	}
	m.input.Blur()
	return m, nil
}

func (m Model) back() (tea.Model, tea.Cmd) {
	if len(m.history) == 0 || m.step == stepDone {
		return m, nil
	}
	m.step = m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.cursor = 0
	m.problem = ""
	if m.isInputStep() {
		return m, m.input.Focus()
	}
	m.input.Blur()
	return m, nil
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepOperation:
		m.opts.Operation = operations[m.cursor].op
		if m.opts.Operation == cmd.OpTopology {
			return m.advance(stepConfirm)
		}
		return m.advance(stepDomain)

	case stepDomain:
		domain := strings.TrimSpace(m.input.Value())
		if domain == "" {
			m.problem = "a domain name or UUID is required"
			return m, nil
		}
		m.opts.Domain = domain
		if m.opts.Operation == cmd.OpMigrate {
			return m.advance(stepVcpu)
		}
		return m.advance(stepPolicy)

	case stepPolicy:
		m.opts.Socket = migrate.Unset
		m.opts.SameCore, m.opts.Distribute, m.opts.Identity = false, false, false
		switch policies[m.cursor].strategy {
		case placement.StrategySocket:
			if m.topo.Sockets == 0 {
				m.problem = "no sockets reported by the host"
				return m, nil
			}
			return m.advance(stepSocket)
		case placement.StrategySameCore:
			m.opts.SameCore = true
		case placement.StrategyDistribute:
			m.opts.Distribute = true
		default:
			m.opts.Identity = true
		}
		return m.advance(stepConfirm)

	case stepSocket:
		m.opts.Socket = m.cursor
		return m.advance(stepConfirm)

	case stepVcpu:
		n, ok := m.readIndex(-1)
		if !ok {
			return m, nil
		}
		m.opts.Vcpu = n
		return m.advance(stepCoreA)

	case stepCoreA:
		n, ok := m.readIndex(m.topo.TotalCores)
		if !ok {
			return m, nil
		}
		m.opts.CoreA = n
		return m.advance(stepCoreB)

	case stepCoreB:
		n, ok := m.readIndex(m.topo.TotalCores)
		if !ok {
			return m, nil
		}
		m.opts.CoreB = n
		return m.advance(stepInterval)

	case stepInterval:
		raw := strings.TrimSpace(m.input.Value())
		if raw == "" {
			m.opts.Interval = 0
			return m.advance(stepBackground)
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			m.problem = "interval must be a positive number of seconds"
			return m, nil
		}
		m.opts.Interval = n
		return m.advance(stepBackground)

	case stepBackground:
		m.opts.Background = m.cursor == 1
		return m.advance(stepConfirm)

	case stepConfirm:
		if m.cursor == 1 {
			m.aborted = true
			return m, tea.Quit
		}
		m.history = append(m.history, m.step)
		m.step = stepDone
		return m, tea.Quit
	}
	return m, nil
}

// readIndex parses the input as a non-negative index, bounded by limit when
// limit is positive.
func (m *Model) readIndex(limit int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
	switch {
	case err != nil || n < 0:
		m.problem = "enter a non-negative number"
		return 0, false
	case limit > 0 && n >= limit:
		m.problem = fmt.Sprintf("must be below %d", limit)
		return 0, false
	}
	return n, true
}

func (m Model) View() string {
	if m.step == stepDone {
		return ""
	}

	var b strings.Builder
	b.WriteString(RenderTopology(m.topo))
	b.WriteString("\n")

	switch m.step {
	case stepOperation:
		b.WriteString(subtitleStyle.Render("? What do you want to do?"))
		b.WriteString("\n\n")
		for i, op := range operations {
			b.WriteString(m.renderChoice(i, op.name, op.desc))
		}
	case stepDomain:
		b.WriteString(m.renderInput("? Domain name or UUID", ""))
	case stepPolicy:
		b.WriteString(subtitleStyle.Render("? Placement policy for " + m.opts.Domain))
		b.WriteString("\n\n")
		for i, p := range policies {
			b.WriteString(m.renderChoice(i, p.name, p.desc))
		}
	case stepSocket:
		b.WriteString(subtitleStyle.Render("? Which socket?"))
		b.WriteString("\n\n")
		for s := 0; s < m.topo.Sockets; s++ {
			b.WriteString(m.renderChoice(s, fmt.Sprintf("Socket %d", s), topology.FormatCPUs(m.topo.SocketCPUs(s))))
		}
	case stepVcpu:
		b.WriteString(m.renderInput("? vCPU index to migrate", ""))
	case stepCoreA:
		b.WriteString(m.renderInput("? First host CPU", fmt.Sprintf("0 - %d", m.topo.TotalCores-1)))
	case stepCoreB:
		b.WriteString(m.renderInput("? Second host CPU", fmt.Sprintf("0 - %d", m.topo.TotalCores-1)))
	case stepInterval:
		b.WriteString(m.renderInput("? Seconds between switches", "leave empty for the configured default"))
	case stepBackground:
		b.WriteString(subtitleStyle.Render("? Keep running after the shell exits?"))
		b.WriteString("\n\n")
		b.WriteString(m.renderChoice(0, "No, run in the foreground", ""))
		b.WriteString(m.renderChoice(1, "Yes, detach", ""))
	case stepConfirm:
		b.WriteString(subtitleStyle.Render("? Confirm"))
		b.WriteString("\n\n")
		b.WriteString("  Command: " + highlightStyle.Render(m.Command()))
		b.WriteString("\n\n")
		b.WriteString(m.renderChoice(0, "Yes, run it", ""))
		b.WriteString(m.renderChoice(1, "No, cancel", ""))
	}

	if m.problem != "" {
		b.WriteString("\n")
		b.WriteString(failStyle.Render("  " + m.problem))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

// Command is the command line equivalent of the options collected so far.
func (m Model) Command() string {
	return strings.Join(append([]string{"vmanage"}, m.opts.Args()...), " ")
}

func (m Model) renderChoice(i int, label, desc string) string {
	var b strings.Builder
	if i == m.cursor {
		b.WriteString(cursorStyle.Render("  ▸ "))
		b.WriteString(selectedStyle.Render(label))
	} else {
		b.WriteString("    ")
		b.WriteString(label)
	}
	b.WriteString("\n")
	if desc != "" {
		b.WriteString("      " + dimStyle.Render(desc) + "\n")
	}
	return b.String()
}

func (m Model) renderInput(question, hint string) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(question))
	b.WriteString("\n\n")
	if hint != "" {
		b.WriteString("  " + dimStyle.Render(hint) + "\n\n")
	}
	b.WriteString("  > ")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) renderHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(secondaryColor)

	var parts []string
	if !m.isInputStep() {
		parts = append(parts, keyStyle.Render("↑/↓")+dimStyle.Render(" navigate"))
	}
	parts = append(parts, keyStyle.Render("enter")+dimStyle.Render(" select"))
	parts = append(parts, keyStyle.Render("esc")+dimStyle.Render(" back"))
	if m.isInputStep() {
		parts = append(parts, keyStyle.Render("ctrl+c")+dimStyle.Render(" quit"))
	} else {
		parts = append(parts, keyStyle.Render("q")+dimStyle.Render(" quit"))
	}
	return strings.Join(parts, dimStyle.Render(" • "))
}

// Run shows the wizard and returns the chosen options, or nil if the user
// cancelled.
func Run(topo topology.Topology) (*cmd.Options, error) {
	p := tea.NewProgram(NewModel(topo), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(Model); ok {
		return m.Options(), nil
	}
	return nil, nil
}
