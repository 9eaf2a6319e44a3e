// Package strategy implements the transfer backends a manifest can select.
// The set is closed: adding a backend means adding a Kind and a case in
// NewInvoker.
package strategy

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ronin-go/internal/manifest"
	"ronin-go/internal/ronin"
)

// Kind names a transfer backend.
type Kind string

const (
	// KindRsync runs rsync against a local destination.
	KindRsync Kind = "rsync"
	// KindTest records requests without transferring anything.
	KindTest Kind = "test"
)

// Kinds lists every supported backend.
func Kinds() []Kind {
	return []Kind{KindRsync, KindTest}
}

// ParseKind maps a manifest type to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", &ronin.ConfigurationError{Field: "type", Err: fmt.Errorf("unknown strategy type: %q", s)}
}

// NewInvoker creates the backend for kind.
func NewInvoker(kind Kind, logger ronin.Logger) (ronin.Invoker, error) {
	if logger == nil {
		logger = ronin.NewNopLogger()
	}
	switch kind {
	case KindRsync:
		return NewRsyncInvoker(logger), nil
	case KindTest:
		return NewTestInvoker(0, logger), nil
	default:
		return nil, &ronin.ConfigurationError{Field: "type", Err: fmt.Errorf("unknown strategy type: %q", kind)}
	}
}

// NewInvokerFromManifest creates the backend the manifest's type selects.
func NewInvokerFromManifest(m *manifest.Manifest, logger ronin.Logger) (ronin.Invoker, error) {
	kind, err := ParseKind(m.Type)
	if err != nil {
		var cfgErr *ronin.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = m.File()
		}
		return nil, err
	}
	return NewInvoker(kind, logger)
}

// NewRequest builds the transfer request described by the manifest.
// Ignore patterns from the manifest and .roninignore are passed along so
// the backend leaves out the same paths the watcher does.
func NewRequest(m *manifest.Manifest) (ronin.SyncRequest, error) {
	target, err := m.Target()
	if err != nil {
		return ronin.SyncRequest{}, &ronin.ConfigurationError{Source: m.File(), Field: "path", Err: err}
	}
	filter, err := m.Filter()
	if err != nil {
		return ronin.SyncRequest{}, err
	}

	excludes := make([]string, 0, len(m.Exclude))
	for _, e := range m.Exclude {
		excludes = append(excludes, filepath.ToSlash(strings.TrimSpace(e)))
	}

	return ronin.SyncRequest{
		Source:   m.SourceDir(),
		Target:   target,
		Excludes: excludes,
		Ignore:   filter.Patterns(),
		Elevate:  m.Elevate,
		Args:     append([]string(nil), m.Args...),
	}, nil
}
