package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation limits.
const (
	logMaxSizeMB  = 2
	logMaxBackups = 10
)

// roninHandler is a custom slog.Handler. The full format is
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// and the compact format, used on a terminal, is
//
//	<hh:mm:ss> <level> <message> <key=value ...>
type roninHandler struct {
	w       io.Writer
	runID   string
	level   slog.Leveler
	compact bool
	attrs   []slog.Attr
}

func (h *roninHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

// Handle writes each record with a single Write so lines from concurrent
// goroutines never interleave.
func (h *roninHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	sep := "\t"
	if h.compact {
		sep = " "
		fmt.Fprintf(&b, "%s %-5s %s", r.Time.Local().Format("15:04:05"), r.Level, r.Message)
	} else {
		ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s", ts, r.Level, h.runID, r.Message)
	}

	for _, a := range h.attrs {
		fmt.Fprintf(&b, "%s%s=%v", sep, a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "%s%s=%v", sep, a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *roninHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

func (h *roninHandler) WithGroup(string) slog.Handler { return h }

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// LogOptions configures newLogger.
type LogOptions struct {
	// Dir receives ronin.log unless File is set.
	Dir string
	// File overrides the log file path.
	File    string
	RunID   string
	Verbose bool
	// Console receives the human-facing copy of the log; nil means stderr.
	Console io.Writer
}

// newLogger creates a structured logger that writes to a rotating log file
// and to the console. The returned closer releases the log file.
func newLogger(opts LogOptions) (*slog.Logger, io.Closer, error) {
	path := opts.File
	if path == "" {
		path = filepath.Join(opts.Dir, "ronin.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	console := opts.Console
	compact := false
	if console == nil {
		console = os.Stderr
		compact = term.IsTerminal(int(os.Stderr.Fd()))
	}

	handler := fanoutHandler{
		&roninHandler{w: file, runID: opts.RunID, level: level},
		&roninHandler{w: console, runID: opts.RunID, level: level, compact: compact},
	}
	return slog.New(handler), file, nil
}

// slogAdapter wraps *slog.Logger to satisfy the ronin.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
