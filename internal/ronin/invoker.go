package ronin

import (
	"context"
	"time"
)

// SyncRequest describes one transfer from Source to Target.
type SyncRequest struct {
	Source   string
	Target   string
	Excludes []string // exclusion fragments as written in the manifest, relative to Source
	Ignore   []string // gitignore-style patterns
	Elevate  bool
	Args     []string
}

// SyncResult is the outcome of a completed transfer process.
type SyncResult struct {
	ExitCode int
	Duration time.Duration
}

// Invoker performs the actual file transfer. Implementations live in the
// strategy package; the core only calls Invoke and observes the exit code.
type Invoker interface {
	// Name identifies the strategy in logs and history (e.g. "rsync").
	Name() string

	// Invoke runs the transfer and waits for it to finish.
	// A non-nil error means the transfer could not be run at all;
	// a completed process with a non-zero status returns a result and nil error.
	Invoke(ctx context.Context, req SyncRequest) (SyncResult, error)
}
