package testutil

import (
	"context"
	"sync"

	"ronin-go/internal/ronin"
)

// ManualTrigger delivers a signal each time Fire is called. Fire blocks until
// the watch loop takes the signal, so each call is exactly one cycle.
type ManualTrigger struct {
	c      chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewManualTrigger creates an unstarted manual trigger.
func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{c: make(chan struct{})}
}

func (t *ManualTrigger) Start(ctx context.Context) error { return nil }

func (t *ManualTrigger) C() <-chan struct{} { return t.c }

func (t *ManualTrigger) Kind() ronin.Trigger { return ronin.TriggerPoll }

// Fire hands one signal to the loop, or returns false if ctx ends first.
func (t *ManualTrigger) Fire(ctx context.Context) bool {
	select {
	case t.c <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *ManualTrigger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed reports whether the loop released the trigger.
func (t *ManualTrigger) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
