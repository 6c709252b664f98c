package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/automata-tech/labdash/internal/lab"
	"github.com/automata-tech/labdash/internal/lifecycle"
)

const (
	colorGreen  lipgloss.Color = "#4caf50"
	colorOrange lipgloss.Color = "#ff9800"
	colorBlue   lipgloss.Color = "#2196f3"
	colorGrey   lipgloss.Color = "#999999"
	colorRed    lipgloss.Color = "#f44336"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	tabStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(colorGrey)
	activeTab    = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(colorBlue)
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(colorRed).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorGrey)
	formBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// statusColor maps device and workflow statuses to badge colours.
func statusColor(status string) lipgloss.Color {
	switch status {
	case string(lab.DeviceAvailable), string(lab.WorkflowCompleted):
		return colorGreen
	case string(lab.DeviceBusy), string(lab.WorkflowRunning):
		return colorOrange
	case string(lab.WorkflowCreated):
		return colorBlue
	}
	return colorGrey
}

func badge(status string) string {
	return lipgloss.NewStyle().Foreground(statusColor(status)).Render("[" + status + "]")
}

func (a *App) View() string {
	if len(a.snap.Devices) == 0 && (a.snap.Loading || a.snap.Seq == 0) {
		return "Loading lab automation system...\n"
	}
	if a.form != nil {
		return a.renderForm()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Lab Automation Dashboard"))
	if !a.snap.RefreshedAt.IsZero() {
		b.WriteString(mutedStyle.Render("  updated " + humanize.Time(a.snap.RefreshedAt)))
	}
	b.WriteString("\n")
	if msg := a.snap.ErrorText(); msg != "" {
		for _, line := range strings.Split(msg, "\n") {
			b.WriteString(bannerStyle.Render(a.truncate(line)) + "\n")
		}
	}
	b.WriteString(a.renderTabs() + "\n\n")

	switch a.pane {
	case paneDevices:
		b.WriteString(a.renderDevices())
	case paneWorkflows:
		b.WriteString(a.renderWorkflows())
	case paneSamples:
		b.WriteString(a.renderSamples())
	}

	if a.status != "" {
		style := okStyle
		if a.isError {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(a.truncate(a.status)) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render(helpLine(a.keys.NextPane, a.keys.Down, a.keys.Up, a.keys.Start, a.keys.Complete, a.keys.New, a.keys.Refresh, a.keys.Quit)))
	return b.String()
}

func (a *App) renderTabs() string {
	tabs := make([]string, 0, paneCount)
	for p := pane(0); p < paneCount; p++ {
		label := fmt.Sprintf("%s (%d)", p, a.rows(p))
		if p == a.pane {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) renderDevices() string {
	if len(a.snap.Devices) == 0 {
		return "No devices found.\n"
	}
	var b strings.Builder
	for i, d := range a.snap.Devices {
		assigned := "-"
		if d.WorkflowID != nil {
			assigned = *d.WorkflowID
		}
		line := fmt.Sprintf("%s%-24s %s  %-15s %-18s wf:%s", a.marker(paneDevices, i),
			ansi.Truncate(d.Name, 24, ""), badge(string(d.Status)), d.Type, d.ID, assigned)
		b.WriteString(a.truncate(line) + "\n")
		if i == a.cursors[paneDevices] && len(d.Capabilities) > 0 {
			b.WriteString(mutedStyle.Render(a.truncate("    capabilities: "+strings.Join(d.Capabilities, ", "))) + "\n")
		}
	}
	return b.String()
}

func (a *App) renderWorkflows() string {
	if len(a.snap.Workflows) == 0 {
		return "No workflows yet. Press 'n' to create one.\n"
	}
	var b strings.Builder
	for i, w := range a.snap.Workflows {
		line := fmt.Sprintf("%s%-24s %s  device:%s  samples:%d  steps:%d", a.marker(paneWorkflows, i),
			ansi.Truncate(w.Name, 24, ""), badge(string(w.Status)), w.DeviceID, len(w.SampleBarcodes), len(w.Steps))
		b.WriteString(a.truncate(line) + "\n")
	}
	if w, ok := a.selectedWorkflow(); ok {
		b.WriteString("\n" + a.renderWorkflowDetail(w))
	}
	return b.String()
}

func (a *App) renderWorkflowDetail(w lab.Workflow) string {
	lines := []string{
		titleStyle.Render(w.Name) + "  " + mutedStyle.Render(w.ID),
		"created:   " + a.timestamp(&w.CreatedAt),
		"started:   " + a.timestamp(w.StartedAt),
		"completed: " + a.timestamp(w.CompletedAt),
	}
	if len(w.SampleBarcodes) > 0 {
		lines = append(lines, "samples:   "+strings.Join(w.SampleBarcodes, ", "))
	}
	for i, s := range w.Steps {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, s))
	}
	switch lifecycle.NextAction(w) {
	case lifecycle.ActionStart:
		lines = append(lines, mutedStyle.Render("press s to start"))
	case lifecycle.ActionComplete:
		lines = append(lines, mutedStyle.Render("press c to complete"))
	}
	for i := range lines {
		lines[i] = a.truncate(lines[i])
	}
	return strings.Join(lines, "\n") + "\n"
}

func (a *App) renderSamples() string {
	if len(a.snap.Samples) == 0 {
		return "No samples found.\n"
	}
	var b strings.Builder
	for i, s := range a.snap.Samples {
		b.WriteString(a.truncate(fmt.Sprintf("%s%-12s %s", a.marker(paneSamples, i), s.Barcode, s.Name)) + "\n")
	}
	return b.String()
}

func (a *App) renderForm() string {
	f := a.form
	var b strings.Builder
	b.WriteString(titleStyle.Render("New Workflow") + "\n\n")
	b.WriteString(f.name.View() + "\n\n")

	b.WriteString(a.fieldLabel(fieldDevice, "Device") + "\n")
	switch {
	case f.deviceID == "":
		b.WriteString(mutedStyle.Render("  Select a device...") + "\n")
	case !f.pickOffered():
		b.WriteString(errorStyle.Render(a.truncate("▶ "+f.deviceID+" (no longer available)")) + "\n")
	}
	if len(f.devices) == 0 {
		b.WriteString(mutedStyle.Render("  no available devices") + "\n")
	}
	for _, d := range f.devices {
		prefix := "  "
		if d.ID == f.deviceID {
			prefix = "▶ "
		}
		b.WriteString(a.truncate(fmt.Sprintf("%s%s (%s)", prefix, d.Name, d.ID)) + "\n")
	}

	b.WriteString("\n" + a.fieldLabel(fieldSamples, fmt.Sprintf("Samples (%d selected)", len(f.selected))) + "\n")
	b.WriteString(f.filter.View() + "\n")
	for i, s := range f.visible {
		prefix := "  "
		if f.focus == fieldSamples && i == f.cursor {
			prefix = "▶ "
		}
		check := "[ ]"
		if f.isSelected(s.Barcode) {
			check = "[x]"
		}
		b.WriteString(a.truncate(fmt.Sprintf("%s%s %-12s %s", prefix, check, s.Barcode, s.Name)) + "\n")
	}

	b.WriteString("\n" + a.fieldLabel(fieldSteps, "Steps") + "\n")
	b.WriteString(f.steps.View() + "\n")

	if f.err != "" {
		b.WriteString("\n" + errorStyle.Render(a.truncate(f.err)) + "\n")
	}
	if f.submitting {
		b.WriteString("\n" + mutedStyle.Render("Creating...") + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render(helpLine(a.keys.NextField, a.keys.Submit, a.keys.Cancel)+"  space: toggle sample"))
	return formBoxStyle.Render(b.String())
}

func (a *App) fieldLabel(field formField, label string) string {
	if a.form.focus == field {
		return activeTab.UnsetPadding().Render(label)
	}
	return label
}

func (a *App) marker(p pane, i int) string {
	if a.pane == p && a.cursors[p] == i {
		return "▶ "
	}
	return "  "
}

func (a *App) timestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.In(a.tz).Format(a.dateFormat), humanize.Time(*t))
}

func (a *App) truncate(s string) string {
	if a.width <= 0 {
		return s
	}
	return ansi.Truncate(s, a.width, "")
}
