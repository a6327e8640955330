package regen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stacklok/status-page-server/internal/telemetry"
)

// State is the coordinator state
type State int32

const (
	// StateIdle means no render is running
	StateIdle State = iota
	// StateRendering means a render is running and no change arrived since it started
	StateRendering
	// StateRenderingPending means a render is running and another one is owed
	StateRenderingPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateRenderingPending:
		return "rendering_pending"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Renderer performs one full site render
type Renderer interface {
	Render(ctx context.Context) error
}

// Coordinator serializes renders and coalesces the signals received while one runs
type Coordinator struct {
	renderer Renderer
	signals  <-chan struct{}
	metrics  *telemetry.RenderMetrics

	state atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithMetrics sets the render metrics for the coordinator
func WithMetrics(metrics *telemetry.RenderMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// New creates a coordinator consuming signals. Start must be called to run it.
func New(renderer Renderer, signals <-chan struct{}, opts ...Option) *Coordinator {
	c := &Coordinator{
		renderer: renderer,
		signals:  signals,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Done is closed when Start has returned
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Start runs the coordinator. It blocks until the signal source is closed and all
// owed renders are done, or until ctx is cancelled and the in-flight render is done.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.cancel = cancel
	c.mu.Unlock()

	slog.Info("Starting regeneration coordinator")
	defer func() {
		close(c.done)
		slog.Info("Regeneration coordinator stopped")
	}()

	renderDone := make(chan struct{}, 1)
	signals := c.signals

	for {
		select {
		case _, ok := <-signals:
			if !ok {
				signals = nil
				slog.Info("Signal source closed", "state", c.State().String())
				if c.State() == StateIdle {
					return nil
				}
				continue
			}
			signals = c.onSignal(ctx, signals, renderDone)

		case <-renderDone:
			signals = c.onRenderDone(ctx, signals, renderDone)
			if signals == nil && c.State() == StateIdle {
				return nil
			}

		case <-ctx.Done():
			if c.State() != StateIdle {
				if c.State() == StateRenderingPending {
					slog.Warn("Dropping pending render on shutdown")
				}
				<-renderDone
				c.setState(StateIdle)
			}
			return nil
		}
	}
}

// Stop cancels the coordinator and waits for Start to return
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	slog.Info("Stopping regeneration coordinator")
	cancel()
	<-c.done
	return nil
}

func (c *Coordinator) onSignal(ctx context.Context, signals <-chan struct{}, renderDone chan struct{}) <-chan struct{} {
	switch c.State() {
	case StateIdle:
		if ctx.Err() != nil {
			return signals
		}
		return c.startRender(ctx, signals, renderDone)
	case StateRendering:
		c.setState(StateRenderingPending)
		c.metrics.RecordSignalAbsorbed(ctx)
	case StateRenderingPending:
		c.metrics.RecordSignalAbsorbed(ctx)
	}
	return signals
}

func (c *Coordinator) onRenderDone(ctx context.Context, signals <-chan struct{}, renderDone chan struct{}) <-chan struct{} {
	if c.State() == StateRenderingPending {
		if ctx.Err() == nil {
			return c.startRender(ctx, signals, renderDone)
		}
		slog.Warn("Dropping pending render on shutdown")
	}
	c.setState(StateIdle)
	return signals
}

// startRender moves to Rendering and launches one render. Signals already buffered
// were sent before the render reads the store, so they are consumed here. It returns
// nil when the source turned out to be closed.
func (c *Coordinator) startRender(ctx context.Context, signals <-chan struct{}, renderDone chan struct{}) <-chan struct{} {
	signals = c.drain(ctx, signals)
	c.setState(StateRendering)

	// a started render always runs to completion
	renderCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() { renderDone <- struct{}{} }()
		c.render(renderCtx)
	}()
	return signals
}

func (c *Coordinator) drain(ctx context.Context, signals <-chan struct{}) <-chan struct{} {
	for {
		select {
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			c.metrics.RecordSignalAbsorbed(ctx)
		default:
			return signals
		}
	}
}

func (c *Coordinator) render(ctx context.Context) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
		duration := time.Since(start)
		c.metrics.RecordRender(ctx, duration, err == nil)
		if err != nil {
			slog.ErrorContext(ctx, "Render failed", "error", err, "duration", duration)
		}
	}()

	err = c.renderer.Render(ctx)
}

func (c *Coordinator) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		slog.Debug("Coordinator state changed", "from", prev.String(), "to", s.String())
	}
}
