package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"ronin-go/internal/config"
	"ronin-go/internal/history"
	"ronin-go/internal/manifest"
	"ronin-go/internal/ronin"
	"ronin-go/internal/service"
	"ronin-go/internal/snapshot"
	"ronin-go/internal/strategy"
	"ronin-go/internal/watcher"
)

// Options selects the source directory and per-invocation overrides.
type Options struct {
	// SourceDir holds the manifest; empty means the working directory.
	SourceDir string
	// DryRun replaces the manifest's strategy with the test strategy.
	DryRun  bool
	LogFile string
	Verbose bool
	// Console receives log output for the user; nil means stderr.
	Console io.Writer
}

// WatchOptions overrides the config's watch defaults for one run.
type WatchOptions struct {
	Poll        bool
	Interval    time.Duration
	MaxFailures int
	InitialSync bool
}

// RoninApp is the application layer between the CLI and RoninService.
// It constructs all dependencies from config and the source directory's
// manifest and releases them on Close.
type RoninApp struct {
	cfg      *config.Config
	manifest *manifest.Manifest
	history  *history.SQLiteStore
	service  *service.RoninService
	logger   ronin.Logger
	logFile  io.Closer
}

// NewRoninApp creates a fully wired RoninApp. The caller must call Close
// when done.
func NewRoninApp(cfg *config.Config, opts Options) (*RoninApp, error) {
	sourceDir := opts.SourceDir
	if sourceDir == "" {
		sourceDir = "."
	}
	m, err := manifest.Load(sourceDir)
	if err != nil {
		return nil, err
	}
	m.Ignore = append(slices.Clone(cfg.Filesystem.Ignore), m.Ignore...)

	filter, err := m.Filter()
	if err != nil {
		return nil, err
	}
	req, err := strategy.NewRequest(m)
	if err != nil {
		return nil, err
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(LogOptions{
		Dir:     cfg.LogDir,
		File:    opts.LogFile,
		RunID:   runID,
		Verbose: opts.Verbose,
		Console: opts.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	var invoker ronin.Invoker
	if opts.DryRun {
		invoker = strategy.NewTestInvoker(0, logger)
	} else {
		invoker, err = strategy.NewInvokerFromManifest(m, logger)
		if err != nil {
			logFile.Close()
			return nil, err
		}
	}

	store, err := history.NewStoreFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("history schema out of date: %w", err)
	}

	src := service.Source{
		Request:   req,
		Recursive: !cfg.Watch.Shallow,
		Filter:    filter,
	}
	svc := service.NewRoninService(src, invoker, store, logger, ronin.RealClock{}, ronin.UUIDGenerator{})

	return &RoninApp{
		cfg:      cfg,
		manifest: m,
		history:  store,
		service:  svc,
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// Manifest returns the loaded manifest.
func (a *RoninApp) Manifest() *manifest.Manifest { return a.manifest }

// Request returns the transfer the app performs.
func (a *RoninApp) Request() ronin.SyncRequest { return a.service.Source().Request }

// Sync performs one transfer.
func (a *RoninApp) Sync(ctx context.Context) (*ronin.SyncRun, error) {
	return a.service.SyncOnce(ctx, ronin.TriggerOnce, nil)
}

// Watch syncs on every change until ctx is cancelled or the watcher gives
// up. Cancellation is a clean exit; an in-flight sync finishes first.
func (a *RoninApp) Watch(ctx context.Context, opts WatchOptions) error {
	interval := opts.Interval
	if interval == 0 {
		interval = a.cfg.Watch.PollInterval.Duration
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = a.cfg.Watch.MaxFailures
	}

	if opts.InitialSync {
		if _, err := a.Sync(ctx); err != nil {
			var invErr *ronin.SyncInvocationError
			if !errors.As(err, &invErr) {
				return err
			}
		}
	}

	src := a.service.Source()
	var trigger watcher.Trigger
	if opts.Poll || a.cfg.Watch.Poll {
		trigger = watcher.NewPollTrigger(interval)
	} else {
		trigger = watcher.NewNotifyTrigger(src.Request.Source, src.Recursive, src.Filter, a.logger)
	}

	w := a.service.NewWatcher(trigger, maxFailures, interval)
	err := w.Start(ctx)
	var rootErr *ronin.RootUnavailableError
	if err != nil && trigger.Kind() == ronin.TriggerEvent && !errors.As(err, &rootErr) {
		a.logger.Warn("filesystem events unavailable, polling instead", "error", err, "interval", interval)
		w = a.service.NewWatcher(watcher.NewPollTrigger(interval), maxFailures, interval)
		err = w.Start(ctx)
	}
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		a.logger.Info("stopping watch", "root", src.Request.Source)
		return w.Stop()
	case <-w.Done():
		return w.Wait()
	}
}

// Snapshot records the current state of the source directory.
func (a *RoninApp) Snapshot() (*snapshot.Snapshot, error) {
	return a.service.TakeSnapshot()
}

// DiffAfter reports what changed in the source directory over d.
func (a *RoninApp) DiffAfter(ctx context.Context, d time.Duration) (*snapshot.Snapshot, *snapshot.Diff, error) {
	return a.service.DiffAfter(ctx, d)
}

// History returns the most recent sync runs.
func (a *RoninApp) History(limit int) ([]*ronin.SyncRun, error) {
	return a.service.History(limit)
}

// Close releases the history database and the log file.
func (a *RoninApp) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing history: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}

// ListHistory returns the most recent sync runs across every source
// directory without loading a manifest.
func ListHistory(cfg *config.Config, limit int) ([]*ronin.SyncRun, error) {
	store, err := history.NewStoreFromConfig(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()
	return store.ListRuns(limit)
}

// ExportHistory writes a copy of the history database to path.
func ExportHistory(cfg *config.Config, path string) error {
	store, err := history.NewStoreFromConfig(cfg.History)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()
	return store.ExportTo(path)
}
