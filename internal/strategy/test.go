package strategy

import (
	"context"
	"slices"
	"strings"
	"sync"

	"ronin-go/internal/ronin"
)

// TestInvoker records every request and returns a configurable exit code.
// It backs --dry-run, where it logs the rsync command that would have run.
type TestInvoker struct {
	mu       sync.Mutex
	exitCode int
	err      error
	requests []ronin.SyncRequest
	logger   ronin.Logger
}

var _ ronin.Invoker = (*TestInvoker)(nil)

// NewTestInvoker creates a TestInvoker that reports exitCode.
func NewTestInvoker(exitCode int, logger ronin.Logger) *TestInvoker {
	if logger == nil {
		logger = ronin.NewNopLogger()
	}
	return &TestInvoker{exitCode: exitCode, logger: logger}
}

func (t *TestInvoker) Name() string { return string(KindTest) }

// SetResult changes what later calls return.
func (t *TestInvoker) SetResult(exitCode int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exitCode = exitCode
	t.err = err
}

func (t *TestInvoker) Invoke(ctx context.Context, req ronin.SyncRequest) (ronin.SyncResult, error) {
	argv := NewRsyncInvoker(t.logger).Command(req)
	t.logger.Info("dry run", "command", strings.Join(argv, " "))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.err != nil {
		return ronin.SyncResult{ExitCode: -1}, t.err
	}
	return ronin.SyncResult{ExitCode: t.exitCode}, nil
}

// Requests returns every request received, in order.
func (t *TestInvoker) Requests() []ronin.SyncRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.requests)
}
