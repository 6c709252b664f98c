package tui

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/automata-tech/labdash/internal/lab"
	"github.com/automata-tech/labdash/internal/lifecycle"
)

type formField int

const (
	fieldName formField = iota
	fieldDevice
	fieldSamples
	fieldSteps
	fieldCount
)

// createForm collects the inputs of a new workflow.
type createForm struct {
	name    textinput.Model
	filter  textinput.Model
	steps   textarea.Model
	focus   formField
	devices []lab.Device
	// deviceID is the operator's pick; "" until one is made. It is kept when
	// the device drops out of devices so validation rejects it.
	deviceID string

	samples  []lab.Sample
	visible  []lab.Sample
	cursor   int
	selected []string // barcodes in pick order

	err        string
	submitting bool
}

func newCreateForm(devices []lab.Device, samples []lab.Sample) *createForm {
	name := textinput.New()
	name.Prompt = "Name: "
	name.Placeholder = "PCR Setup Protocol"
	name.CharLimit = 120
	name.Focus()

	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.Placeholder = "barcode or name"

	steps := textarea.New()
	steps.Placeholder = "One step per line"
	steps.ShowLineNumbers = false
	steps.CharLimit = 0
	steps.SetWidth(60)
	steps.SetHeight(6)

	f := &createForm{
		name:    name,
		filter:  filter,
		steps:   steps,
		devices: devices,
		samples: samples,
	}
	f.refilter()
	return f
}

// formValues snapshots the form for lifecycle.BuildCreateRequest.
func (f *createForm) formValues() lifecycle.CreateForm {
	return lifecycle.CreateForm{
		Name:           f.name.Value(),
		DeviceID:       f.deviceID,
		SampleBarcodes: append([]string(nil), f.selected...),
		StepsText:      f.steps.Value(),
	}
}

// setDevices replaces the device choices. The pick is left alone even when it
// is no longer offered.
func (f *createForm) setDevices(devices []lab.Device) {
	f.devices = devices
}

// deviceIndex is the position of the pick in devices, or -1.
func (f *createForm) deviceIndex() int {
	for i, d := range f.devices {
		if d.ID == f.deviceID {
			return i
		}
	}
	return -1
}

// pickOffered reports whether the pick is still among the offered devices.
func (f *createForm) pickOffered() bool {
	return f.deviceID == "" || f.deviceIndex() >= 0
}

func (f *createForm) moveDevice(delta int) {
	if len(f.devices) == 0 {
		return
	}
	i := f.deviceIndex()
	switch {
	case i < 0:
		i = 0
	default:
		i = min(max(i+delta, 0), len(f.devices)-1)
	}
	f.deviceID = f.devices[i].ID
}

func (f *createForm) setSamples(samples []lab.Sample) {
	f.samples = samples
	f.refilter()
}

func (f *createForm) isSelected(barcode string) bool {
	for _, b := range f.selected {
		if b == barcode {
			return true
		}
	}
	return false
}

func (f *createForm) toggle(barcode string) {
	for i, b := range f.selected {
		if b == barcode {
			f.selected = append(f.selected[:i], f.selected[i+1:]...)
			return
		}
	}
	f.selected = append(f.selected, barcode)
}

func (f *createForm) refilter() {
	f.visible = filterSamples(f.samples, f.filter.Value())
	if f.cursor >= len(f.visible) {
		f.cursor = max(len(f.visible)-1, 0)
	}
}

func (f *createForm) setFocus(next formField) {
	f.name.Blur()
	f.filter.Blur()
	f.steps.Blur()
	f.focus = (next + fieldCount) % fieldCount
	switch f.focus {
	case fieldName:
		f.name.Focus()
	case fieldSamples:
		f.filter.Focus()
	case fieldSteps:
		f.steps.Focus()
	}
}

type formAction int

const (
	formActionNone formAction = iota
	formActionSubmit
	formActionCancel
)

func (f *createForm) Update(msg tea.KeyMsg, keys keyMap) (formAction, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		return formActionCancel, nil
	case key.Matches(msg, keys.Submit):
		return formActionSubmit, nil
	case key.Matches(msg, keys.NextField):
		f.setFocus(f.focus + 1)
		return formActionNone, nil
	case key.Matches(msg, keys.PrevField):
		f.setFocus(f.focus - 1)
		return formActionNone, nil
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldName:
		if msg.Type == tea.KeyEnter {
			return formActionSubmit, nil
		}
		f.name, cmd = f.name.Update(msg)
	case fieldDevice:
		switch msg.String() {
		case "up", "k", "left", "h":
			f.moveDevice(-1)
		case "down", "j", "right", "l":
			f.moveDevice(1)
		case "enter":
			return formActionSubmit, nil
		}
	case fieldSamples:
		switch msg.String() {
		case "up":
			if f.cursor > 0 {
				f.cursor--
			}
		case "down":
			if f.cursor < len(f.visible)-1 {
				f.cursor++
			}
		case " ", "enter":
			if f.cursor < len(f.visible) {
				f.toggle(f.visible[f.cursor].Barcode)
			}
		default:
			f.filter, cmd = f.filter.Update(msg)
			f.refilter()
		}
	case fieldSteps:
		f.steps, cmd = f.steps.Update(msg)
	}
	return formActionNone, cmd
}

// filterSamples keeps samples whose barcode or name contains query, then
// those within a small edit distance of it. Order within each group is kept.
func filterSamples(samples []lab.Sample, query string) []lab.Sample {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]lab.Sample(nil), samples...)
	}
	var exact, fuzzy []lab.Sample
	for _, s := range samples {
		barcode, name := strings.ToLower(s.Barcode), strings.ToLower(s.Name)
		switch {
		case strings.Contains(barcode, q), strings.Contains(name, q):
			exact = append(exact, s)
		case similar(q, barcode), similar(q, name), anyWordSimilar(q, name):
			fuzzy = append(fuzzy, s)
		}
	}
	return append(exact, fuzzy...)
}

const similarityThreshold = 0.6

func similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1-float64(dist)/float64(maxLen) >= similarityThreshold
}

func anyWordSimilar(q, s string) bool {
	for _, w := range strings.Fields(s) {
		if similar(q, w) {
			return true
		}
	}
	return false
}
