// Package service coordinates snapshots, the transfer strategy and run
// history for one source directory.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	rfs "ronin-go/internal/fs"
	"ronin-go/internal/ronin"
	"ronin-go/internal/snapshot"
	"ronin-go/internal/watcher"
)

// Source describes the directory being synchronized and how to walk it.
type Source struct {
	Request   ronin.SyncRequest
	Recursive bool
	Filter    *rfs.PathFilter
	// FS is the filesystem to walk; nil means the real one.
	FS snapshot.FileSystem
}

// RoninService is the orchestration layer used by the CLI: one-shot syncs,
// the watch callback and snapshot inspection.
type RoninService struct {
	source  Source
	invoker ronin.Invoker
	history ronin.HistoryStore
	logger  ronin.Logger
	clock   ronin.Clock
	idgen   ronin.IDGenerator
}

// NewRoninService creates a RoninService. history may be nil, in which case
// runs are not recorded.
func NewRoninService(source Source, invoker ronin.Invoker, history ronin.HistoryStore, logger ronin.Logger, clock ronin.Clock, idgen ronin.IDGenerator) *RoninService {
	return &RoninService{
		source:  source,
		invoker: invoker,
		history: history,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Source returns the directory description the service was built with.
func (s *RoninService) Source() Source { return s.source }

// SyncOnce runs the transfer strategy once and records the run. diff is the
// change that caused the run and may be nil.
//
// A transfer that ran but exited non-zero returns the run together with a
// *ronin.SyncInvocationError. Failing to record history is logged and does
// not fail the sync.
func (s *RoninService) SyncOnce(ctx context.Context, trigger ronin.Trigger, diff *snapshot.Diff) (*ronin.SyncRun, error) {
	req := s.source.Request
	run := &ronin.SyncRun{
		ID:        s.idgen.New(),
		Trigger:   trigger,
		Strategy:  s.invoker.Name(),
		Source:    req.Source,
		Target:    req.Target,
		StartedAt: s.clock.Now(),
		Status:    ronin.StatusRunning,
	}
	if diff != nil {
		run.Changes = diff.Summary()
	}

	if s.history != nil {
		if err := s.history.StartRun(run); err != nil {
			s.logger.Warn("failed to record sync start", "run", run.ID, "error", err)
		}
	}

	s.logger.Info("syncing",
		"run", run.ID,
		"trigger", string(trigger),
		"strategy", run.Strategy,
		"source", req.Source,
		"target", req.Target)

	res, invokeErr := s.invoker.Invoke(ctx, req)
	run.FinishedAt = sql.NullTime{Time: s.clock.Now(), Valid: true}

	var err error
	switch {
	case invokeErr != nil:
		run.Status = ronin.StatusError
		run.Error = invokeErr.Error()
		err = fmt.Errorf("running %s: %w", run.Strategy, invokeErr)
		s.logger.Error("sync could not run", "run", run.ID, "error", invokeErr)
	case res.ExitCode != 0:
		invErr := &ronin.SyncInvocationError{Strategy: run.Strategy, ExitCode: res.ExitCode}
		run.Status = ronin.StatusFailed
		run.ExitCode = sql.NullInt64{Int64: int64(res.ExitCode), Valid: true}
		run.Error = invErr.Error()
		err = invErr
		s.logger.Error("sync failed", "run", run.ID, "exit_code", res.ExitCode)
	default:
		run.Status = ronin.StatusSuccess
		run.ExitCode = sql.NullInt64{Int64: 0, Valid: true}
		s.logger.Info("sync complete", "run", run.ID, "duration", res.Duration.Round(time.Millisecond))
	}

	if s.history != nil {
		if herr := s.history.FinishRun(run); herr != nil {
			s.logger.Warn("failed to record sync outcome", "run", run.ID, "error", herr)
		}
	}
	return run, err
}

// OnChange returns the watch callback: every non-empty diff triggers a sync
// recorded under trigger.
func (s *RoninService) OnChange(trigger ronin.Trigger) watcher.ChangeFunc {
	return func(ctx context.Context, diff *snapshot.Diff) error {
		_, err := s.SyncOnce(ctx, trigger, diff)
		return err
	}
}

// NewWatcher creates an idle watcher over the source that syncs on change.
// retry paces snapshots while the source is unavailable; zero means
// watcher.DefaultRetryInterval.
func (s *RoninService) NewWatcher(trigger watcher.Trigger, maxFailures int, retry time.Duration) *watcher.Watcher {
	cfg := watcher.Config{
		Root:          s.source.Request.Source,
		Recursive:     s.source.Recursive,
		Filter:        s.source.Filter,
		MaxFailures:   maxFailures,
		RetryInterval: retry,
		FS:            s.source.FS,
	}
	return watcher.New(cfg, trigger, s.OnChange(trigger.Kind()), s.logger)
}

// TakeSnapshot records the current state of the source.
func (s *RoninService) TakeSnapshot() (*snapshot.Snapshot, error) {
	return snapshot.Take(s.source.Request.Source, s.source.Recursive, s.source.Filter, s.source.FS)
}

// DiffAfter takes a snapshot, waits for d, takes another and returns both
// the second snapshot and the changes between them.
func (s *RoninService) DiffAfter(ctx context.Context, d time.Duration) (*snapshot.Snapshot, *snapshot.Diff, error) {
	before, err := s.TakeSnapshot()
	if err != nil {
		return nil, nil, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-timer.C:
	}

	after, err := s.TakeSnapshot()
	if err != nil {
		return nil, nil, err
	}
	return after, snapshot.Compare(before, after), nil
}

// History returns up to limit recorded runs, newest first.
func (s *RoninService) History(limit int) ([]*ronin.SyncRun, error) {
	if s.history == nil {
		return nil, nil
	}
	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return runs, nil
}
