package lifecycle

import (
	"strings"

	"github.com/automata-tech/labdash/internal/lab"
)

// CreateForm is what the operator filled in to create a workflow.
type CreateForm struct {
	Name           string
	DeviceID       string
	SampleBarcodes []string
	StepsText      string
}

// BuildCreateRequest validates form against the devices currently offered
// and assembles the create payload. It never touches the network; a
// *lab.ValidationError means nothing should be sent.
func BuildCreateRequest(form CreateForm, devices []lab.Device) (lab.WorkflowSpec, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return lab.WorkflowSpec{}, &lab.ValidationError{Field: "name", Reason: "is required"}
	}
	deviceID := strings.TrimSpace(form.DeviceID)
	if deviceID == "" {
		return lab.WorkflowSpec{}, &lab.ValidationError{Field: "device", Reason: "must be selected"}
	}
	if !hasAvailableDevice(devices, deviceID) {
		return lab.WorkflowSpec{}, &lab.ValidationError{Field: "device", Reason: "is not available"}
	}

	return lab.WorkflowSpec{
		Name:           name,
		DeviceID:       deviceID,
		SampleBarcodes: dedupe(form.SampleBarcodes),
		Steps:          ParseSteps(form.StepsText),
	}, nil
}

// ParseSteps splits free text into one step per line, dropping blank lines
// and keeping order.
func ParseSteps(text string) []string {
	steps := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		steps = append(steps, line)
	}
	return steps
}

func hasAvailableDevice(devices []lab.Device, id string) bool {
	for _, d := range devices {
		if d.ID == id && d.Status == lab.DeviceAvailable {
			return true
		}
	}
	return false
}

func dedupe(barcodes []string) []string {
	seen := make(map[string]struct{}, len(barcodes))
	out := make([]string, 0, len(barcodes))
	for _, b := range barcodes {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}
