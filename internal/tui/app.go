package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/automata-tech/labdash/internal/config"
	"github.com/automata-tech/labdash/internal/lab"
	"github.com/automata-tech/labdash/internal/lifecycle"
)

// Commands is the write side the dashboard drives.
type Commands interface {
	Start(ctx context.Context, id string) (lab.Snapshot, error)
	Complete(ctx context.Context, id string) (lab.Snapshot, error)
	Create(ctx context.Context, form lifecycle.CreateForm, devices []lab.Device) (lab.Workflow, lab.Snapshot, error)
}

// Refresher runs one poll on demand.
type Refresher interface {
	RefreshAll(ctx context.Context) lab.Snapshot
}

// SnapshotMsg delivers a poll result to the program. Snapshots older than
// the one on screen are dropped.
type SnapshotMsg lab.Snapshot

type commandDoneMsg struct {
	verb    string
	snap    lab.Snapshot
	created lab.Workflow
	err     error
}

type clearStatusMsg struct{ id int }

type pane int

const (
	paneDevices pane = iota
	paneWorkflows
	paneSamples
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneDevices:
		return "Devices"
	case paneWorkflows:
		return "Workflows"
	case paneSamples:
		return "Samples"
	}
	return ""
}

const statusTTL = 4 * time.Second

// App is the dashboard model.
type App struct {
	ctx       context.Context
	cmds      Commands
	refresher Refresher
	keys      keyMap

	snap    lab.Snapshot
	pane    pane
	cursors [paneCount]int
	form    *createForm

	status   string
	statusID int
	isError  bool

	dateFormat string
	tz         *time.Location
	width      int
	height     int
}

func New(ctx context.Context, cfg config.UIConfig, cmds Commands, refresher Refresher, initial lab.Snapshot) *App {
	dateFormat := cfg.DateFormat
	if dateFormat == "" {
		dateFormat = time.DateTime
	}
	return &App{
		ctx:        ctx,
		cmds:       cmds,
		refresher:  refresher,
		keys:       defaultKeys(),
		snap:       initial,
		dateFormat: dateFormat,
		tz:         cfg.Location(),
		width:      100,
	}
}

func (a *App) Init() tea.Cmd {
	return nil
}

// Snapshot returns the snapshot on screen.
func (a *App) Snapshot() lab.Snapshot { return a.snap }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		return a, nil
	case SnapshotMsg:
		a.apply(lab.Snapshot(m))
		return a, nil
	case commandDoneMsg:
		return a, a.handleDone(m)
	case clearStatusMsg:
		if m.id == a.statusID {
			a.status = ""
			a.isError = false
		}
		return a, nil
	case tea.KeyMsg:
		if a.form != nil {
			return a, a.handleFormKey(m)
		}
		return a.handleKey(m)
	}
	return a, nil
}

// apply shows snap unless a newer one is already displayed.
func (a *App) apply(snap lab.Snapshot) {
	if snap.Seq != 0 && snap.Seq <= a.snap.Seq {
		return
	}
	a.snap = snap
	for p := pane(0); p < paneCount; p++ {
		a.cursors[p] = clamp(a.cursors[p], a.rows(p))
	}
	if a.form != nil {
		a.form.setDevices(snap.AvailableDevices())
		a.form.setSamples(snap.Samples)
	}
}

func (a *App) rows(p pane) int {
	switch p {
	case paneDevices:
		return len(a.snap.Devices)
	case paneWorkflows:
		return len(a.snap.Workflows)
	case paneSamples:
		return len(a.snap.Samples)
	}
	return 0
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.NextPane):
		a.pane = (a.pane + 1) % paneCount
	case key.Matches(m, a.keys.PrevPane):
		a.pane = (a.pane + paneCount - 1) % paneCount
	case key.Matches(m, a.keys.Up):
		if a.cursors[a.pane] > 0 {
			a.cursors[a.pane]--
		}
	case key.Matches(m, a.keys.Down):
		if a.cursors[a.pane] < a.rows(a.pane)-1 {
			a.cursors[a.pane]++
		}
	case key.Matches(m, a.keys.Refresh):
		return a, a.refresh()
	case key.Matches(m, a.keys.New):
		a.form = newCreateForm(a.snap.AvailableDevices(), a.snap.Samples)
	case key.Matches(m, a.keys.Start):
		if w, ok := a.selectedWorkflow(); ok && lifecycle.CanStart(w) {
			return a, a.startWorkflow(w.ID)
		}
	case key.Matches(m, a.keys.Complete):
		if w, ok := a.selectedWorkflow(); ok && lifecycle.CanComplete(w) {
			return a, a.completeWorkflow(w.ID)
		}
	}
	return a, nil
}

func (a *App) handleFormKey(m tea.KeyMsg) tea.Cmd {
	action, cmd := a.form.Update(m, a.keys)
	switch action {
	case formActionCancel:
		a.form = nil
		return nil
	case formActionSubmit:
		if a.form.submitting {
			return nil
		}
		values := a.form.formValues()
		devices := a.snap.AvailableDevices()
		if _, err := lifecycle.BuildCreateRequest(values, devices); err != nil {
			a.form.err = err.Error()
			return nil
		}
		a.form.err = ""
		a.form.submitting = true
		return a.createWorkflow(values, devices)
	}
	return cmd
}

func (a *App) selectedWorkflow() (lab.Workflow, bool) {
	if a.pane != paneWorkflows || len(a.snap.Workflows) == 0 {
		return lab.Workflow{}, false
	}
	return a.snap.Workflows[clamp(a.cursors[paneWorkflows], len(a.snap.Workflows))], true
}

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg(a.refresher.RefreshAll(a.ctx))
	}
}

func (a *App) startWorkflow(id string) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.cmds.Start(a.ctx, id)
		return commandDoneMsg{verb: "start", snap: snap, err: err}
	}
}

func (a *App) completeWorkflow(id string) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.cmds.Complete(a.ctx, id)
		return commandDoneMsg{verb: "complete", snap: snap, err: err}
	}
}

func (a *App) createWorkflow(form lifecycle.CreateForm, devices []lab.Device) tea.Cmd {
	return func() tea.Msg {
		wf, snap, err := a.cmds.Create(a.ctx, form, devices)
		return commandDoneMsg{verb: "create", snap: snap, created: wf, err: err}
	}
}

func (a *App) handleDone(m commandDoneMsg) tea.Cmd {
	if m.verb == "create" && a.form != nil {
		a.form.submitting = false
	}
	if m.err != nil {
		var verr *lab.ValidationError
		if errors.As(m.err, &verr) && a.form != nil {
			a.form.err = verr.Error()
			return nil
		}
		if a.form != nil && m.verb == "create" {
			a.form.err = m.err.Error()
		}
		return a.setStatus(fmt.Sprintf("Failed to %s workflow: %s", m.verb, m.err.Error()), true)
	}

	a.apply(m.snap)
	switch m.verb {
	case "create":
		a.form = nil
		a.pane = paneWorkflows
		a.focusWorkflow(m.created.ID)
		return a.setStatus(fmt.Sprintf("Workflow %q created", m.created.Name), false)
	case "start":
		return a.setStatus("Workflow started", false)
	default:
		return a.setStatus("Workflow completed", false)
	}
}

func (a *App) focusWorkflow(id string) {
	for i, w := range a.snap.Workflows {
		if w.ID == id {
			a.cursors[paneWorkflows] = i
			return
		}
	}
}

func (a *App) setStatus(s string, isError bool) tea.Cmd {
	a.statusID++
	a.status = s
	a.isError = isError
	id := a.statusID
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return clearStatusMsg{id: id} })
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		return 0
	}
	return i
}
