package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"

	rfs "ronin-go/internal/fs"
	"ronin-go/internal/ronin"
)

// NotifyTrigger signals on native filesystem events. Events on excluded
// paths are dropped, so changes inside excluded subtrees never start a
// cycle. A burst of events yields one pending signal.
type NotifyTrigger struct {
	root      string
	recursive bool
	filter    *rfs.PathFilter
	logger    ronin.Logger

	c      chan struct{}
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// NewNotifyTrigger creates an event trigger for root. filter may be nil.
func NewNotifyTrigger(root string, recursive bool, filter *rfs.PathFilter, logger ronin.Logger) *NotifyTrigger {
	if logger == nil {
		logger = ronin.NewNopLogger()
	}
	return &NotifyTrigger{
		root:      root,
		recursive: recursive,
		filter:    filter,
		logger:    logger,
		c:         make(chan struct{}, 1),
	}
}

func (t *NotifyTrigger) Start(ctx context.Context) error {
	root, err := rfs.NormalizePath(t.root)
	if err != nil {
		return &ronin.RootUnavailableError{Root: t.root, Err: err}
	}
	t.root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	t.fsw = fsw

	if err := t.add(root); err != nil {
		fsw.Close()
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return &ronin.RootUnavailableError{Root: root, Err: err}
		}
		return fmt.Errorf("watching %s: %w", root, err)
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Go(func() { t.run(ctx) })
	return nil
}

func (t *NotifyTrigger) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.fsw.Events:
			if !ok {
				return
			}
			t.handle(ev)
		case err, ok := <-t.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; the next cycle's diff still sees them.
				signal(t.c)
			}
			t.logger.Warn("watch error", "root", t.root, "error", err)
		}
	}
}

func (t *NotifyTrigger) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	isDir := false
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		if info, err := os.Lstat(path); err == nil {
			isDir = info.IsDir()
		}
	}

	if t.filter.IsExcluded(path) || (isDir && t.filter.IsExcludedDir(path)) {
		t.logger.Debug("ignoring excluded event", "path", path, "op", ev.Op.String())
		return
	}

	if isDir && ev.Has(fsnotify.Create) && t.recursive {
		if err := t.add(path); err != nil {
			t.logger.Warn("watching new directory", "path", path, "error", err)
		}
	}

	t.logger.Debug("event", "path", path, "op", ev.Op.String())
	signal(t.c)
}

// add registers dir and, when recursive, every non-excluded directory
// beneath it. Directories that vanish during the walk are skipped.
func (t *NotifyTrigger) add(dir string) error {
	if !t.recursive {
		return t.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != t.root && t.filter.IsExcludedDir(path) {
			return filepath.SkipDir
		}
		if err := t.fsw.Add(path); err != nil && path == dir {
			return err
		}
		return nil
	})
}

// Root returns the watched root, normalized once Start has run.
func (t *NotifyTrigger) Root() string { return t.root }

func (t *NotifyTrigger) C() <-chan struct{} { return t.c }

func (t *NotifyTrigger) Kind() ronin.Trigger { return ronin.TriggerEvent }

// WatchList returns the directories currently registered with the
// notification subsystem.
func (t *NotifyTrigger) WatchList() []string {
	if t.fsw == nil {
		return nil
	}
	return t.fsw.WatchList()
}

func (t *NotifyTrigger) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	var err error
	if t.fsw != nil {
		err = t.fsw.Close()
	}
	t.wg.Wait()
	return err
}
