// Package lab holds the data model shared by the dashboard: the resources
// reported by the device, sample and workflow services, and the snapshot the
// synchronizer builds from them.
package lab

import (
	"errors"
	"strings"
	"time"
)

// DeviceStatus is the availability reported for a device. Values outside the
// known set are kept as-is and rendered as unknown.
type DeviceStatus string

const (
	DeviceAvailable DeviceStatus = "available"
	DeviceBusy      DeviceStatus = "busy"
)

// WorkflowStatus is the server-assigned lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowCreated   WorkflowStatus = "created"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
)

// Device is a lab instrument as reported by the device service.
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Status       DeviceStatus `json:"status"`
	WorkflowID   *string      `json:"workflow_id,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty"`
}

// Sample is a specimen identified by its barcode.
type Sample struct {
	Barcode string `json:"barcode"`
	Name    string `json:"name"`
}

// Workflow binds one device and zero or more samples to an ordered list of steps.
type Workflow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	DeviceID       string         `json:"device_id"`
	SampleBarcodes []string       `json:"sample_barcodes,omitempty"`
	Steps          []string       `json:"steps,omitempty"`
	Status         WorkflowStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

var errTimeline = errors.New("workflow timestamps out of order")

// CheckTimeline reports whether the timestamps present on w are ordered
// created <= started <= completed and match its status.
func (w Workflow) CheckTimeline() error {
	switch w.Status {
	case WorkflowCreated:
		if w.StartedAt != nil || w.CompletedAt != nil {
			return errTimeline
		}
	case WorkflowRunning:
		if w.StartedAt == nil || w.CompletedAt != nil {
			return errTimeline
		}
	case WorkflowCompleted:
		if w.StartedAt == nil || w.CompletedAt == nil {
			return errTimeline
		}
	}
	if w.StartedAt != nil && w.StartedAt.Before(w.CreatedAt) {
		return errTimeline
	}
	if w.CompletedAt != nil && w.StartedAt != nil && w.CompletedAt.Before(*w.StartedAt) {
		return errTimeline
	}
	return nil
}

// WorkflowSpec is the payload of a create-workflow command.
type WorkflowSpec struct {
	Name           string   `json:"name"`
	DeviceID       string   `json:"device_id"`
	SampleBarcodes []string `json:"sample_barcodes"`
	Steps          []string `json:"steps"`
}

// Snapshot is the consolidated view state produced by one poll. It is built
// fresh on every poll and must not be mutated by consumers.
type Snapshot struct {
	// Devices carry the overlay status; LiveDevices are exactly as reported.
	Devices     []Device
	LiveDevices []Device
	Samples     []Sample
	Workflows   []Workflow

	// Err aggregates the failures of the poll that produced this snapshot.
	Err     error
	Loading bool

	Seq         uint64
	RefreshedAt time.Time
}

// ErrorText returns the operator-facing poll error, one line per failure, or
// "" when there is none. Fetch failures render as their Summary.
func (s Snapshot) ErrorText() string {
	if s.Err == nil {
		return ""
	}
	errs := []error{s.Err}
	if joined, ok := s.Err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		var fe *FetchError
		if errors.As(err, &fe) {
			lines = append(lines, fe.Summary())
			continue
		}
		lines = append(lines, err.Error())
	}
	return strings.Join(lines, "\n")
}

// Workflow looks up a cached workflow by id.
func (s Snapshot) Workflow(id string) (Workflow, bool) {
	for _, w := range s.Workflows {
		if w.ID == id {
			return w, true
		}
	}
	return Workflow{}, false
}

// AvailableDevices returns the devices whose live status is available.
func (s Snapshot) AvailableDevices() []Device {
	return FilterAvailable(s.LiveDevices)
}

// FilterAvailable keeps the devices with status available, preserving order.
func FilterAvailable(devices []Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.Status == DeviceAvailable {
			out = append(out, d)
		}
	}
	return out
}
