package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/open-teleop/mocap-ar/pkg/config"
	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

// FrameObserver is told about every frame the controller applied, after the
// handles have moved.
type FrameObserver interface {
	ObserveFrame(sessionID string, f *qtm.Frame)
}

// StatusObserver is an optional extension of FrameObserver told about every
// state transition.
type StatusObserver interface {
	ObserveStatus(st RunnerStatus)
}

// RunnerStatus is the status reported to other goroutines.
type RunnerStatus struct {
	Status
	Rotating  bool      `json:"rotating"`
	LastEvent string    `json:"last_event,omitempty"`
	Updated   time.Time `json:"updated"`
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	TickRate time.Duration
	Clock    clock.Clock
	// Options, when set, is read on every start trigger so configuration
	// updates apply to the next session.
	Options  func() config.StreamConfig
	Observer FrameObserver
	Logger   customlog.Logger
}

// Runner is the single goroutine that owns a Controller. It drains control
// events and polls the controller once per tick.
type Runner struct {
	controller *Controller
	events     <-chan events.Event
	opts       RunnerOptions
	logger     customlog.Logger

	rotating  bool
	lastEvent string

	mu     sync.RWMutex
	status RunnerStatus
}

// NewRunner wires a runner around controller.
func NewRunner(controller *Controller, evs <-chan events.Event, opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.TickRate <= 0 {
		opts.TickRate = time.Second / 60
	}
	if opts.Logger == nil {
		opts.Logger = customlog.NewDiscardLogger()
	}
	r := &Runner{
		controller: controller,
		events:     evs,
		opts:       opts,
		logger:     opts.Logger.WithField(customlog.ComponentField, "runner"),
	}
	r.publishStatus()
	return r
}

// Run blocks until ctx is done, then closes the session.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.opts.Clock.Ticker(r.opts.TickRate)
	defer ticker.Stop()
	r.logger.Infof("Runner started, tick every %s", r.opts.TickRate)

	for {
		select {
		case <-ctx.Done():
			r.logger.Infof("Runner stopping")
			err := r.controller.Close()
			r.publishStatus()
			return err
		case ev := <-r.events:
			r.HandleEvent(ctx, ev)
		case <-ticker.C:
			r.Tick()
		}
	}
}

// HandleEvent applies one control event. It must only be called from the
// goroutine that owns the runner.
func (r *Runner) HandleEvent(ctx context.Context, ev events.Event) {
	r.lastEvent = ev.Kind.String()
	defer r.publishStatus()

	switch {
	case ev.Kind.StartsStream():
		if r.opts.Options != nil && r.controller.State() != Streaming {
			r.controller.SetOptions(r.opts.Options())
		}
		err := r.controller.Start(ctx, ev.Address)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyStreaming):
			r.logger.Debugf("%s ignored while streaming", ev.Kind)
		default:
			r.logger.Warnf("Start from %s failed: %v", sourceOf(ev), err)
		}
	case ev.Kind == events.BumperDown:
		r.rotating = true
		r.logger.Debugf("Anchor rotation started")
	case ev.Kind == events.BumperUp:
		r.rotating = false
		r.logger.Debugf("Anchor rotation stopped")
	default:
		r.logger.Warnf("Unhandled event %s", ev.Kind)
	}
}

func sourceOf(ev events.Event) string {
	if ev.Source == "" {
		return "unknown source"
	}
	return ev.Source
}

// Tick polls the controller once.
func (r *Runner) Tick() {
	f, err := r.controller.Poll()
	if err != nil {
		r.logger.Warnf("Poll failed: %v", err)
	}
	if f != nil && r.opts.Observer != nil {
		r.opts.Observer.ObserveFrame(r.controller.SessionID().String(), f)
	}
	r.refreshStatus()
}

// refreshStatus updates the counters of the current snapshot and rebuilds
// the snapshot only when the state moved.
func (r *Runner) refreshStatus() {
	state := r.controller.State()
	r.mu.Lock()
	moved := state != r.status.State
	if !moved {
		r.status.Counters = r.controller.Counters()
		r.status.Updated = r.opts.Clock.Now()
	}
	r.mu.Unlock()

	if moved {
		r.publishStatus()
	}
}

func (r *Runner) publishStatus() {
	st := RunnerStatus{
		Status:    r.controller.Status(),
		Rotating:  r.rotating,
		LastEvent: r.lastEvent,
		Updated:   r.opts.Clock.Now(),
	}
	r.mu.Lock()
	prev := r.status.State
	r.status = st
	r.mu.Unlock()

	if prev != st.State {
		if so, ok := r.opts.Observer.(StatusObserver); ok {
			so.ObserveStatus(st)
		}
	}
}

// Status is safe to call from any goroutine.
func (r *Runner) Status() RunnerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
