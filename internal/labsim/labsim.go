// Package labsim simulates the device, sample and workflow services in
// memory. Each service is its own echo instance so they can be served on
// separate ports like the real deployment; all three share one Lab state.
package labsim

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/automata-tech/labdash/internal/lab"
)

// ErrUnknownDevice is returned by SetDeviceStatus for an id that is not seeded.
var ErrUnknownDevice = errors.New("unknown device")

const (
	msgDeviceNotFound   = "Device not found"
	msgSampleNotFound   = "Sample not found"
	msgWorkflowNotFound = "Workflow not found"
)

// Lab is the shared state behind the simulated services.
type Lab struct {
	mu        sync.Mutex
	devices   []lab.Device
	samples   []lab.Sample
	workflows []lab.Workflow
	now       func() time.Time
	newID     func() string
}

type Option func(*Lab)

// WithClock overrides the time source used for workflow timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Lab) { l.now = now }
}

// WithIDs overrides workflow id generation.
func WithIDs(fn func() string) Option {
	return func(l *Lab) { l.newID = fn }
}

// New returns a Lab seeded with the default instruments and samples.
func New(opts ...Option) *Lab {
	l := &Lab{
		devices: []lab.Device{
			{ID: "liquid-handler-1", Name: "Liquid Handler Alpha", Type: "liquid_handler", Status: lab.DeviceAvailable, Capabilities: []string{"pipette", "dispense", "aspirate"}},
			{ID: "incubator-1", Name: "Incubator Beta", Type: "incubator", Status: lab.DeviceAvailable, Capabilities: []string{"heat", "cool", "shake"}},
			{ID: "plate-reader-1", Name: "Plate Reader Gamma", Type: "plate_reader", Status: lab.DeviceAvailable, Capabilities: []string{"absorbance", "fluorescence"}},
		},
		samples: []lab.Sample{
			{Barcode: "SAMPLE001", Name: "Blood Sample A"},
			{Barcode: "SAMPLE002", Name: "Tissue Sample B"},
			{Barcode: "SAMPLE003", Name: "Saliva Sample C"},
		},
		workflows: []lab.Workflow{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetDeviceStatus changes a device's status out of band, as an instrument
// going offline would.
func (l *Lab) SetDeviceStatus(id string, status lab.DeviceStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.device(id)
	if d == nil {
		return ErrUnknownDevice
	}
	d.Status = status
	return nil
}

// Workflows returns a copy of the stored workflows.
func (l *Lab) Workflows() []lab.Workflow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]lab.Workflow(nil), l.workflows...)
}

func (l *Lab) device(id string) *lab.Device {
	for i := range l.devices {
		if l.devices[i].ID == id {
			return &l.devices[i]
		}
	}
	return nil
}

func (l *Lab) sample(barcode string) *lab.Sample {
	for i := range l.samples {
		if l.samples[i].Barcode == barcode {
			return &l.samples[i]
		}
	}
	return nil
}

func (l *Lab) workflow(id string) *lab.Workflow {
	for i := range l.workflows {
		if l.workflows[i].ID == id {
			return &l.workflows[i]
		}
	}
	return nil
}

// stamp returns the current time, never earlier than after.
func (l *Lab) stamp(after time.Time) time.Time {
	t := l.now().UTC()
	if t.Before(after) {
		return after
	}
	return t
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Error: msg})
}

func newService(name string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{Status: "healthy", Service: name})
	})
	return e
}
