package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/automata-tech/labdash/internal/lab"
)

// Refresher is anything that can run one poll.
type Refresher interface {
	RefreshAll(ctx context.Context) lab.Snapshot
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the default Ticker factory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

var (
	ErrAlreadyRunning  = errors.New("poll scheduler already running")
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// Scheduler runs a Refresher immediately on Start and then on every tick.
// A tick never waits for the previous refresh, and Stop does not cancel
// refreshes already in flight.
type Scheduler struct {
	refresher Refresher
	newTicker func(time.Duration) Ticker
	log       *slog.Logger

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTicker replaces the ticker factory, mainly for tests.
func WithTicker(fn func(time.Duration) Ticker) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.newTicker = fn
		}
	}
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func NewScheduler(r Refresher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		refresher: r,
		newTicker: NewTimeTicker,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins polling every interval. ctx is handed to each refresh;
// cancelling it ends the tick loop as Stop would.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.quit = make(chan struct{})
	s.done = make(chan struct{})

	ticker := s.newTicker(interval)
	go s.run(ctx, ticker, s.quit, s.done)
	s.log.Info("polling started", "interval", interval)
	return nil
}

// Stop halts future ticks and waits for the tick loop to exit. It is safe to
// call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	quit, done := s.quit, s.done
	s.mu.Unlock()

	close(quit)
	<-done
	s.log.Info("polling stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, ticker Ticker, quit, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	go s.refresher.RefreshAll(ctx)
	for {
		select {
		case <-ticker.C():
			go s.refresher.RefreshAll(ctx)
		case <-quit:
			return
		case <-ctx.Done():
			s.mu.Lock()
			if s.done == done {
				s.running = false
			}
			s.mu.Unlock()
			return
		}
	}
}
