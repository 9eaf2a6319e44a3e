package ronin

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by operations on a watcher that has already stopped.
var ErrStopped = errors.New("watcher stopped")

// ConfigurationError reports a malformed or missing manifest or config field.
// It is fatal and surfaced before any watching starts.
type ConfigurationError struct {
	Source string // file the value came from, if known
	Field  string // offending field, if known
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("configuration %s: field %q: %v", e.Source, e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("configuration %s: %v", e.Source, e.Err)
	case e.Field != "":
		return fmt.Sprintf("configuration: field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RootUnavailableError reports that the watched root could not be stat'd.
type RootUnavailableError struct {
	Root string
	Err  error
}

func (e *RootUnavailableError) Error() string {
	return fmt.Sprintf("root unavailable: %s: %v", e.Root, e.Err)
}

func (e *RootUnavailableError) Unwrap() error { return e.Err }

// PollCycleError reports a failed snapshot during an active watch.
// Failures counts the consecutive failed cycles including this one.
type PollCycleError struct {
	Root     string
	Failures int
	Err      error
}

func (e *PollCycleError) Error() string {
	return fmt.Sprintf("poll cycle failed for %s (%d consecutive): %v", e.Root, e.Failures, e.Err)
}

func (e *PollCycleError) Unwrap() error { return e.Err }

// SyncInvocationError reports that the transfer tool exited non-zero.
// The watch loop logs it and keeps running.
type SyncInvocationError struct {
	Strategy string
	ExitCode int
}

func (e *SyncInvocationError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Strategy, e.ExitCode)
}

// IsFatal reports whether err should halt execution: configuration errors,
// an unavailable root, and poll cycle errors that exhausted their retries.
// Everything else is recovered locally and logged.
func IsFatal(err error) bool {
	var cfgErr *ConfigurationError
	var rootErr *RootUnavailableError
	var pollErr *PollCycleError
	return errors.As(err, &cfgErr) || errors.As(err, &rootErr) || errors.As(err, &pollErr)
}
