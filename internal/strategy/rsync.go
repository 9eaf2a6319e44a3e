package strategy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"ronin-go/internal/ronin"
)

// RsyncInvoker runs rsync, optionally through sudo. Its output is written to
// the logger line by line.
type RsyncInvoker struct {
	// Binary is the rsync executable; defaults to "rsync" on PATH.
	Binary string
	// Sudo is the elevation command; defaults to "sudo".
	Sudo string

	logger ronin.Logger
}

var _ ronin.Invoker = (*RsyncInvoker)(nil)

// NewRsyncInvoker creates an rsync backend.
func NewRsyncInvoker(logger ronin.Logger) *RsyncInvoker {
	return &RsyncInvoker{Binary: "rsync", Sudo: "sudo", logger: logger}
}

func (r *RsyncInvoker) Name() string { return string(KindRsync) }

// Command returns the argv for req:
// [sudo] rsync <args...> --exclude=<e>... <source>/ <target>
// The trailing separator on the source copies its contents rather than
// the directory itself.
func (r *RsyncInvoker) Command(req ronin.SyncRequest) []string {
	var argv []string
	if req.Elevate {
		argv = append(argv, r.Sudo)
	}
	argv = append(argv, r.Binary)
	argv = append(argv, req.Args...)
	for _, e := range req.Excludes {
		argv = append(argv, "--exclude="+e)
	}
	for _, p := range req.Ignore {
		argv = append(argv, "--exclude="+p)
	}

	source := req.Source
	if !strings.HasSuffix(source, string(filepath.Separator)) {
		source += string(filepath.Separator)
	}
	return append(argv, source, req.Target)
}

// Invoke runs the transfer and waits for it. A non-zero exit is reported
// in the result with a nil error; the error is reserved for failing to run
// rsync at all.
func (r *RsyncInvoker) Invoke(ctx context.Context, req ronin.SyncRequest) (ronin.SyncResult, error) {
	argv := r.Command(req)
	r.logger.Debug("running command", "argv", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ronin.SyncResult{ExitCode: -1}, fmt.Errorf("rsync stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ronin.SyncResult{ExitCode: -1}, fmt.Errorf("rsync stderr: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ronin.SyncResult{ExitCode: -1}, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	var wg conc.WaitGroup
	wg.Go(func() { r.pipe(stdout, false) })
	wg.Go(func() { r.pipe(stderr, true) })
	wg.Wait()

	err = cmd.Wait()
	result := ronin.SyncResult{Duration: time.Since(start)}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("running %s: %w", argv[0], err)
	}
}

func (r *RsyncInvoker) pipe(rd io.Reader, isStderr bool) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if isStderr {
			r.logger.Warn("rsync", "output", line)
		} else {
			r.logger.Info("rsync", "output", line)
		}
	}
}
