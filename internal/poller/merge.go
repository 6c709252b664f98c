package poller

import (
	"errors"
	"time"

	"github.com/automata-tech/labdash/internal/lab"
)

// Result is the outcome of one remote list call.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Results groups the three list calls of one poll.
type Results struct {
	Devices   Result[[]lab.Device]
	Samples   Result[[]lab.Sample]
	Workflows Result[[]lab.Workflow]
}

// DeviceOverlay rewrites device records for display.
type DeviceOverlay interface {
	Apply(devices []lab.Device) []lab.Device
}

// Failed reports whether any list call of the poll failed.
func (r Results) Failed() bool {
	return !r.Devices.OK() || !r.Samples.OK() || !r.Workflows.OK()
}

// Merge builds the next snapshot from prev and the results of one poll. A
// failed resource keeps its last-known value from prev. The failures of this
// poll are joined into Err and replace any earlier error; a poll without
// failures carries prev.Err forward, so the last failure stays visible. The
// overlay only sees freshly fetched devices; nil means identity.
func Merge(prev lab.Snapshot, res Results, ov DeviceOverlay, at time.Time) lab.Snapshot {
	next := lab.Snapshot{
		Devices:     prev.Devices,
		LiveDevices: prev.LiveDevices,
		Samples:     prev.Samples,
		Workflows:   prev.Workflows,
		RefreshedAt: at,
	}

	var errs []error
	if res.Devices.OK() {
		next.LiveDevices = res.Devices.Value
		next.Devices = res.Devices.Value
		if ov != nil {
			next.Devices = ov.Apply(res.Devices.Value)
		}
	} else {
		errs = append(errs, &lab.FetchError{Resource: "devices", Err: res.Devices.Err})
	}
	if res.Samples.OK() {
		next.Samples = res.Samples.Value
	} else {
		errs = append(errs, &lab.FetchError{Resource: "samples", Err: res.Samples.Err})
	}
	if res.Workflows.OK() {
		next.Workflows = res.Workflows.Value
	} else {
		errs = append(errs, &lab.FetchError{Resource: "workflows", Err: res.Workflows.Err})
	}
	next.Err = prev.Err
	if len(errs) > 0 {
		next.Err = errors.Join(errs...)
	}

	if next.Devices == nil {
		next.Devices = []lab.Device{}
	}
	if next.LiveDevices == nil {
		next.LiveDevices = []lab.Device{}
	}
	if next.Samples == nil {
		next.Samples = []lab.Sample{}
	}
	if next.Workflows == nil {
		next.Workflows = []lab.Workflow{}
	}
	return next
}
