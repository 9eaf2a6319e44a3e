// Package watcher drives change detection for one source tree: on every
// trigger signal it re-snapshots the tree, diffs it against the baseline and
// hands non-empty diffs to a callback.
package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	rfs "ronin-go/internal/fs"
	"ronin-go/internal/ronin"
	"ronin-go/internal/snapshot"
)

// DefaultMaxFailures is the number of consecutive failed snapshots after
// which a running watcher gives up.
const DefaultMaxFailures = 5

// DefaultRetryInterval is how long a watcher waits before snapshotting a
// failing root again when no trigger signal arrives.
const DefaultRetryInterval = time.Second

// State is the watcher lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// ChangeFunc handles a non-empty diff. It runs synchronously in the watch
// loop, so no two calls overlap. The returned error is logged only.
type ChangeFunc func(ctx context.Context, diff *snapshot.Diff) error

// Config describes what to watch.
type Config struct {
	Root      string
	Recursive bool
	Filter    *rfs.PathFilter
	// MaxFailures is the consecutive failed snapshot limit; zero means
	// DefaultMaxFailures.
	MaxFailures int
	// RetryInterval paces snapshots while the root is failing, so a trigger
	// that went quiet with the root cannot stall escalation. Zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration
	// FS is the filesystem to walk; nil means the real one.
	FS snapshot.FileSystem
}

// Watcher is the Idle → Running → Stopped state machine around the
// snapshot/diff loop.
type Watcher struct {
	cfg      Config
	trigger  Trigger
	onChange ChangeFunc
	logger   ronin.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	err    error
	wg     conc.WaitGroup
	done   chan struct{}

	baseline atomic.Pointer[snapshot.Snapshot]
	cycles   atomic.Uint64
	failures int
}

// New creates an idle watcher.
func New(cfg Config, trigger Trigger, onChange ChangeFunc, logger ronin.Logger) *Watcher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if logger == nil {
		logger = ronin.NewNopLogger()
	}
	return &Watcher{
		cfg:      cfg,
		trigger:  trigger,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start takes the baseline snapshot, starts the trigger and begins the loop.
// If the root cannot be snapshot the watcher stays Idle and the
// *ronin.RootUnavailableError is returned.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Running:
		return errors.New("watcher already running")
	case Stopped:
		return ronin.ErrStopped
	}

	base, err := snapshot.Take(w.cfg.Root, w.cfg.Recursive, w.cfg.Filter, w.cfg.FS)
	if err != nil {
		return err
	}
	w.baseline.Store(base)

	loopCtx, cancel := context.WithCancel(ctx)
	if err := w.trigger.Start(loopCtx); err != nil {
		cancel()
		return err
	}

	w.cancel = cancel
	w.state = Running
	w.logger.Info("watching",
		"root", base.Root(),
		"trigger", string(w.trigger.Kind()),
		"entries", base.Len(),
		"excluded", len(base.Excluded()))

	w.wg.Go(func() { w.loop(loopCtx) })
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer func() {
		if err := w.trigger.Close(); err != nil {
			w.logger.Warn("closing trigger", "error", err)
		}
		w.mu.Lock()
		w.state = Stopped
		w.mu.Unlock()
		close(w.done)
	}()

	retry := time.NewTimer(w.cfg.RetryInterval)
	retry.Stop()
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger.C():
		case <-retry.C:
		}
		if ctx.Err() != nil {
			return
		}

		if err := w.cycle(ctx); err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}

		// A vanished root takes its native watches with it; keep retrying
		// until it comes back or the failure limit is reached.
		retry.Stop()
		if w.failures > 0 {
			retry.Reset(w.cfg.RetryInterval)
		}
	}
}

// cycle runs one snapshot/diff pass. It returns an error only when the
// watcher must stop.
func (w *Watcher) cycle(ctx context.Context) error {
	defer w.cycles.Add(1)

	cur, err := snapshot.Take(w.cfg.Root, w.cfg.Recursive, w.cfg.Filter, w.cfg.FS)
	if err != nil {
		w.failures++
		cycleErr := &ronin.PollCycleError{Root: w.cfg.Root, Failures: w.failures, Err: err}
		if w.failures >= w.cfg.MaxFailures {
			w.logger.Error("giving up on root", "root", w.cfg.Root, "failures", w.failures, "error", err)
			return cycleErr
		}
		w.logger.Warn("snapshot failed, retrying", "root", w.cfg.Root, "failures", w.failures, "error", err)
		return nil
	}
	if w.failures > 0 {
		w.logger.Info("root available again", "root", w.cfg.Root, "failures", w.failures)
		w.failures = 0
	}

	diff := snapshot.Compare(w.baseline.Load(), cur)
	if !diff.Empty() {
		w.logger.Info("change detected",
			"root", cur.Root(),
			"created", len(diff.Created),
			"deleted", len(diff.Deleted),
			"modified", len(diff.Modified),
			"moved", len(diff.Moved))
		for _, p := range diff.Paths() {
			w.logger.Debug("changed", "path", p)
		}
		if err := w.onChange(context.WithoutCancel(ctx), diff); err != nil {
			w.logger.Error("change handler failed", "error", err)
		}
	}
	w.baseline.Store(cur)
	return nil
}

// Stop moves the watcher to Stopped. It waits for an in-flight callback to
// return and for the loop to exit, then returns the fatal error, if any.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	switch w.state {
	case Idle:
		w.state = Stopped
		close(w.done)
		w.mu.Unlock()
		return nil
	case Running:
		w.cancel()
	}
	w.mu.Unlock()
	return w.Wait()
}

// Wait blocks until the watcher is Stopped and returns the error that
// stopped it, if any.
func (w *Watcher) Wait() error {
	<-w.done
	w.wg.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Done is closed once the watcher is Stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Baseline returns the snapshot the next cycle diffs against.
func (w *Watcher) Baseline() *snapshot.Snapshot {
	return w.baseline.Load()
}

// Cycles returns the number of completed snapshot cycles.
func (w *Watcher) Cycles() uint64 {
	return w.cycles.Load()
}
