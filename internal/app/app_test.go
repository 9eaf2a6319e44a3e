package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"ronin-go/internal/config"
	"ronin-go/internal/ronin"
)

// syncBuffer is a bytes.Buffer safe for the watch loop to write while the
// test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, manifestBody string, opts Options) (*RoninApp, string, *syncBuffer) {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(t.TempDir(), "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "ronin.toml"), []byte(manifestBody), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig(base)
	cfg.History = config.HistoryConfig{Type: "memory"}
	cfg.Watch.PollInterval = config.Duration{Duration: 20 * time.Millisecond}
	cfg.Filesystem.Ignore = []string{"*.swp"}

	console := &syncBuffer{}
	opts.SourceDir = src
	opts.Console = console
	a, err := NewRoninApp(cfg, opts)
	if err != nil {
		t.Fatalf("NewRoninApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, a.Manifest().SourceDir(), console
}

func TestNewRoninApp(t *testing.T) {
	a, src, _ := newTestApp(t, "type = \"test\"\npath = \"/mnt/backup\"\nignore = [\"*.log\"]\n", Options{})

	req := a.Request()
	if req.Source != src || req.Target != "/mnt/backup" {
		t.Errorf("Request() = %+v", req)
	}
	if !slices.Equal(req.Ignore, []string{"*.swp", "*.log"}) {
		t.Errorf("Ignore = %v, want global patterns first", req.Ignore)
	}
}

func TestNewRoninApp_Errors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		cfg := config.NewConfig(t.TempDir())
		cfg.History.Type = "memory"
		_, err := NewRoninApp(cfg, Options{SourceDir: t.TempDir(), Console: &bytes.Buffer{}})
		var cfgErr *ronin.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("NewRoninApp() error = %v, want ConfigurationError", err)
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		src := t.TempDir()
		if err := os.WriteFile(filepath.Join(src, "ronin.toml"), []byte("type = \"ftp\"\npath = \"/dst\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := config.NewConfig(t.TempDir())
		cfg.History.Type = "memory"
		_, err := NewRoninApp(cfg, Options{SourceDir: src, Console: &bytes.Buffer{}})
		var cfgErr *ronin.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "type" {
			t.Errorf("NewRoninApp() error = %v, want ConfigurationError on type", err)
		}
	})
}

func TestRoninApp_Sync(t *testing.T) {
	t.Run("dry run logs the command", func(t *testing.T) {
		a, src, console := newTestApp(t, "type = \"rsync\"\npath = \"/mnt/backup\"\nargs = [\"-a\"]\n", Options{DryRun: true})

		run, err := a.Sync(context.Background())
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if run.Status != ronin.StatusSuccess || run.Strategy != "test" {
			t.Errorf("run = %+v", run)
		}
		if !strings.Contains(console.String(), "command=rsync -a --exclude=*.swp "+src+"/ /mnt/backup") {
			t.Errorf("console = %q", console.String())
		}

		runs, err := a.History(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].Trigger != ronin.TriggerOnce {
			t.Errorf("History() = %+v", runs)
		}
	})
}

func TestRoninApp_Snapshot(t *testing.T) {
	a, src, _ := newTestApp(t, "type = \"test\"\npath = \"/dst\"\nexclude = [\"cache\"]\n", Options{})
	for _, rel := range []string{"keep.txt", "cache/skip.bin", "notes.swp"} {
		p := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !snap.Has(filepath.Join(src, "keep.txt")) {
		t.Error("snapshot missing keep.txt")
	}
	for _, rel := range []string{"cache", "cache/skip.bin", "notes.swp"} {
		if snap.Has(filepath.Join(src, rel)) {
			t.Errorf("snapshot contains excluded %s", rel)
		}
	}
}

func TestRoninApp_WatchPoll(t *testing.T) {
	a, src, _ := newTestApp(t, "type = \"test\"\npath = \"/dst\"\n", Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, WatchOptions{Poll: true, InitialSync: true}) }()

	deadline := time.Now().Add(5 * time.Second)
	wrote := false
	for {
		runs, err := a.History(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) >= 2 {
			if runs[0].Trigger != ronin.TriggerPoll || runs[0].Changes.Created != 1 {
				t.Errorf("latest run = %+v, want a poll run with one created path", runs[0])
			}
			break
		}
		if len(runs) == 1 && !wrote {
			// Initial sync done; give the watcher time to take its baseline.
			time.Sleep(100 * time.Millisecond)
			if err := os.WriteFile(filepath.Join(src, "new.txt"), []byte("new"), 0o644); err != nil {
				t.Fatal(err)
			}
			wrote = true
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for watch sync, runs = %+v", runs)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestListAndExportHistory(t *testing.T) {
	base := t.TempDir()
	cfg := config.NewConfig(base)

	runs, err := ListHistory(cfg, 10)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("ListHistory() on a new database = %d runs", len(runs))
	}

	export := filepath.Join(t.TempDir(), "history-copy.db")
	if err := ExportHistory(cfg, export); err != nil {
		t.Fatalf("ExportHistory() error = %v", err)
	}
	if _, err := os.Stat(export); err != nil {
		t.Errorf("export not written: %v", err)
	}
}
