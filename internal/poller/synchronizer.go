// Package poller keeps the dashboard's view state in step with the resource
// services: each refresh fetches devices, samples and workflows concurrently
// and merges whatever came back into a new snapshot.
package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/automata-tech/labdash/internal/lab"
)

// Lister is the read side of the resource gateway.
type Lister interface {
	ListDevices(ctx context.Context) ([]lab.Device, error)
	ListSamples(ctx context.Context) ([]lab.Sample, error)
	ListWorkflows(ctx context.Context) ([]lab.Workflow, error)
}

// Synchronizer owns the current snapshot. Overlapping refreshes are allowed;
// each one replaces the snapshot when it completes, so the last to finish wins.
type Synchronizer struct {
	lister  Lister
	overlay DeviceOverlay
	log     *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	snap        lab.Snapshot
	seq         uint64
	loaded      bool
	subscribers []func(lab.Snapshot)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger used for partial poll failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source stamped on snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer creates a Synchronizer. The overlay is owned by the caller
// so its lifetime can match the session; nil disables it.
func NewSynchronizer(lister Lister, ov DeviceOverlay, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		lister:  lister,
		overlay: ov,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		snap: lab.Snapshot{
			Devices:     []lab.Device{},
			LiveDevices: []lab.Device{},
			Samples:     []lab.Sample{},
			Workflows:   []lab.Workflow{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive every snapshot produced by RefreshAll.
// fn is called outside the lock, so deliveries from overlapping refreshes may
// arrive out of order; Seq tells them apart.
func (s *Synchronizer) Subscribe(fn func(lab.Snapshot)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// Current returns the latest snapshot. Loading is true while the first
// refresh is outstanding.
func (s *Synchronizer) Current() lab.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// RefreshAll fetches the three collections concurrently, waits for all of
// them, and stores and returns the merged snapshot. A failed call never
// suppresses the others.
func (s *Synchronizer) RefreshAll(ctx context.Context) lab.Snapshot {
	s.mu.Lock()
	if !s.loaded {
		s.snap.Loading = true
	}
	s.mu.Unlock()

	res := s.fetch(ctx)

	s.mu.Lock()
	next := Merge(s.snap, res, s.overlay, s.now())
	s.seq++
	next.Seq = s.seq
	s.snap = next
	s.loaded = true
	subs := append([]func(lab.Snapshot){}, s.subscribers...)
	s.mu.Unlock()

	if res.Failed() {
		s.log.Warn("poll degraded", "seq", next.Seq, "error", next.Err)
	} else {
		s.log.Debug("poll complete", "seq", next.Seq, "devices", len(next.Devices), "samples", len(next.Samples), "workflows", len(next.Workflows))
	}
	for _, fn := range subs {
		fn(next)
	}
	return next
}

func (s *Synchronizer) fetch(ctx context.Context) Results {
	var res Results
	// Each task records its own outcome and returns nil so one failure
	// cannot cancel or hide the others.
	var g errgroup.Group
	g.Go(func() error {
		v, err := s.lister.ListDevices(ctx)
		res.Devices = Result[[]lab.Device]{Value: v, Err: err}
		return nil
	})
	g.Go(func() error {
		v, err := s.lister.ListSamples(ctx)
		res.Samples = Result[[]lab.Sample]{Value: v, Err: err}
		return nil
	})
	g.Go(func() error {
		v, err := s.lister.ListWorkflows(ctx)
		res.Workflows = Result[[]lab.Workflow]{Value: v, Err: err}
		return nil
	})
	_ = g.Wait()
	return res
}
