package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/automata-tech/labdash/internal/lab"
)

type fakeLister struct {
	mu         sync.Mutex
	devices    []lab.Device
	samples    []lab.Sample
	workflows  []lab.Workflow
	devicesErr error
	samplesErr error
	flowsErr   error

	// gate, when set, blocks every ListWorkflows call until it is closed.
	gate  chan struct{}
	calls atomic.Int64
}

func (f *fakeLister) ListDevices(ctx context.Context) ([]lab.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return append([]lab.Device(nil), f.devices...), nil
}

func (f *fakeLister) ListSamples(ctx context.Context) ([]lab.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.samplesErr != nil {
		return nil, f.samplesErr
	}
	return append([]lab.Sample(nil), f.samples...), nil
}

func (f *fakeLister) ListWorkflows(ctx context.Context) ([]lab.Workflow, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flowsErr != nil {
		return nil, f.flowsErr
	}
	return append([]lab.Workflow(nil), f.workflows...), nil
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }
