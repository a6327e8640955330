package regen

import "sync"

// Notifier is implemented by anything that accepts change signals
type Notifier interface {
	Notify()
}

// Trigger is a many-producer, single-consumer signal transport.
// At most one undelivered signal is buffered; further sends fold into it.
type Trigger struct {
	mu     sync.RWMutex
	closed bool
	ch     chan struct{}
}

var _ Notifier = (*Trigger)(nil)

// NewTrigger creates an open Trigger
func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

// Notify signals a change. It never blocks and is a no-op once the trigger is closed.
func (t *Trigger) Notify() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// C returns the receive side consumed by the Coordinator
func (t *Trigger) C() <-chan struct{} {
	return t.ch
}

// Close permanently closes the trigger. A signal still buffered is delivered before the close is observed.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.ch)
	}
}
