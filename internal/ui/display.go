package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"vmanage/internal/migrate"
	"vmanage/internal/placement"
	"vmanage/internal/topology"
)

func PrintTopology(topo topology.Topology) {
	fmt.Println(boxStyle.Render(RenderTopology(topo)))
}

func RenderTopology(topo topology.Topology) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Host CPU Topology"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s %d    %s %d    %s %d    %s %d    %s %s\n",
		socketStyle.Render("Sockets:"), topo.Sockets,
		socketStyle.Render("Cores/socket:"), topo.CoresPerSocket,
		dimStyle.Render("Threads/core:"), topo.ThreadsPerCore,
		cpuStyle.Render("CPUs:"), topo.TotalCores,
		dimStyle.Render("Source:"), highlightStyle.Render(string(topo.Source))))
	b.WriteString("\n")

	for s := 0; s < topo.Sockets; s++ {
		prefix := "├─"
		if s == topo.Sockets-1 {
			prefix = "└─"
		}
		b.WriteString(fmt.Sprintf("  %s %s %d  %s\n",
			prefix, socketStyle.Render("Socket"), s,
			cpuStyle.Render(topology.FormatCPUs(topo.SocketCPUs(s)))))
	}
	return b.String()
}

// RenderPlan draws the vCPU -> CPU table. When outcomes is non-nil each row
// also shows the pin result.
func RenderPlan(domain string, policy placement.Policy, m placement.Map, outcomes []placement.Outcome) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Placement for %s (%s)", domain, policy)))
	b.WriteString("\n\n")

	for i, entry := range m {
		b.WriteString(fmt.Sprintf("  %s %-3d → %s %-3d",
			vcpuStyle.Render("vCPU"), entry.Vcpu,
			cpuStyle.Render("CPU"), entry.PhysicalCPU))
		if outcomes != nil && i < len(outcomes) {
			if outcomes[i].OK {
				b.WriteString("  " + okStyle.Render("✓"))
			} else {
				b.WriteString("  " + failStyle.Render("✗ "+errString(outcomes[i].Err)))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func PrintInvocation(invocation string) {
	fmt.Println(dimStyle.Render("  Equivalent command: ") + highlightStyle.Render(invocation))
	fmt.Println()
}

func PrintDryRun(domain string, policy placement.Policy, m placement.Map, commands []string) {
	var b strings.Builder
	b.WriteString("DRY RUN - Would apply:\n\n")
	b.WriteString(RenderPlan(domain, policy, m, nil))
	b.WriteString("\n")
	for _, command := range commands {
		b.WriteString("  " + dimStyle.Render(command) + "\n")
	}
	fmt.Println()
	fmt.Println(boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	fmt.Println()
}

func PrintOutcomes(domain string, policy placement.Policy, m placement.Map, outcomes []placement.Outcome) {
	content := strings.TrimRight(RenderPlan(domain, policy, m, outcomes), "\n")
	failed := placement.Failures(outcomes)
	style := successBoxStyle
	if failed > 0 {
		style = warningBoxStyle
		content += fmt.Sprintf("\n\n  %d of %d pins failed", failed, len(outcomes))
	} else {
		content += fmt.Sprintf("\n\n  ✓ Pinned %d vCPUs", len(outcomes))
	}
	fmt.Println()
	fmt.Println(style.Render(content))
	fmt.Println()
}

func PrintMigrationStart(spec migrate.Spec, invocation string) {
	content := fmt.Sprintf("Migrating %s of %s\n\n  %s ⇄ %s every %s\n  %s",
		vcpuStyle.Render(fmt.Sprintf("vCPU %d", spec.Vcpu)),
		highlightStyle.Render(spec.Domain),
		cpuStyle.Render(fmt.Sprintf("CPU %d", spec.CoreA)),
		cpuStyle.Render(fmt.Sprintf("CPU %d", spec.CoreB)),
		spec.Interval,
		dimStyle.Render(invocation))
	fmt.Println(boxStyle.Render(content))
}

func PrintDetached(pid int, logFile string) {
	content := fmt.Sprintf("✓ Migration loop running in the background\n\n  PID: %d\n  Log: %s\n  Stop: kill %d", pid, logFile, pid)
	fmt.Println()
	fmt.Println(successBoxStyle.Render(content))
	fmt.Println()
}

func PrintMigrationReport(report migrate.Report) {
	fmt.Println(dimStyle.Render(fmt.Sprintf("  stopped after %d switches, %d failed, last target %s",
		report.HalfCycles, report.Failures, report.LastState)))
}

func PrintError(err error) {
	FprintError(os.Stderr, err)
}

func FprintError(w io.Writer, err error) {
	content := fmt.Sprintf("✗ Error: %v", err)
	fmt.Fprintln(w)
	fmt.Fprintln(w, errorBoxStyle.Render(content))
	fmt.Fprintln(w)
}

func errString(err error) string {
	if err == nil {
		return "failed"
	}
	return err.Error()
}
