package testutil

import (
	"context"
	"slices"
	"sync"

	"ronin-go/internal/ronin"
)

// StubInvoker is a ronin.Invoker that records requests and returns a
// configured result. When a gate is set, Invoke blocks until the gate is
// closed, which lets tests hold a sync in flight.
type StubInvoker struct {
	mu       sync.Mutex
	exitCode int
	err      error
	gate     chan struct{}
	started  chan struct{}
	requests []ronin.SyncRequest
	ctxs     []context.Context
}

var _ ronin.Invoker = (*StubInvoker)(nil)

// NewStubInvoker creates an invoker that exits with exitCode.
func NewStubInvoker(exitCode int) *StubInvoker {
	return &StubInvoker{exitCode: exitCode, started: make(chan struct{}, 16)}
}

func (s *StubInvoker) Name() string { return "stub" }

// SetResult changes what later calls return.
func (s *StubInvoker) SetResult(exitCode int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitCode = exitCode
	s.err = err
}

// Hold makes later calls block until the returned release func is called.
func (s *StubInvoker) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started receives once per Invoke call, after the request is recorded.
func (s *StubInvoker) Started() <-chan struct{} { return s.started }

func (s *StubInvoker) Invoke(ctx context.Context, req ronin.SyncRequest) (ronin.SyncResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.ctxs = append(s.ctxs, ctx)
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ronin.SyncResult{ExitCode: -1}, s.err
	}
	return ronin.SyncResult{ExitCode: s.exitCode}, nil
}

// Requests returns every request received, in order.
func (s *StubInvoker) Requests() []ronin.SyncRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Contexts returns the context passed to each call, in order.
func (s *StubInvoker) Contexts() []context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ctxs)
}
