// Package overlay freezes the displayed status of each device at the value
// first observed for its id. Later polls never change a frozen value, even
// when the device service reports a different status.
package overlay

import (
	"sync"

	"github.com/automata-tech/labdash/internal/lab"
)

// StatusOverlay is a write-once-per-key status store. Entries are never
// overwritten, cleared or evicted for the lifetime of the instance.
type StatusOverlay struct {
	mu       sync.Mutex
	statuses map[string]lab.DeviceStatus
}

// New returns an empty overlay.
func New() *StatusOverlay {
	return &StatusOverlay{statuses: make(map[string]lab.DeviceStatus)}
}

// Apply records the status of every device id not seen before and returns
// copies of devices whose Status is the frozen value for their id.
func (o *StatusOverlay) Apply(devices []lab.Device) []lab.Device {
	out := make([]lab.Device, len(devices))
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, d := range devices {
		frozen, ok := o.statuses[d.ID]
		if !ok {
			frozen = d.Status
			o.statuses[d.ID] = frozen
		}
		d.Status = frozen
		out[i] = d
	}
	return out
}

// Status returns the frozen status for id, if any.
func (o *StatusOverlay) Status(id string) (lab.DeviceStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.statuses[id]
	return s, ok
}

// Len is the number of distinct device ids seen.
func (o *StatusOverlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.statuses)
}
