// Package manifest reads the per-directory sync instructions: where the
// directory's contents go, how they get there, and what to leave out.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	rfs "ronin-go/internal/fs"
	"ronin-go/internal/ronin"
)

// File names searched for in a source directory, in order.
const (
	TOMLFileName = "ronin.toml"
	JSONFileName = "ronin.json"
)

// Manifest holds the sync instructions for one source directory.
type Manifest struct {
	// Type selects the transfer strategy, e.g. "rsync".
	Type string `toml:"type" json:"type"`
	// Path is the destination directory.
	Path string `toml:"path" json:"path"`
	// Elevate runs the transfer as the super user.
	Elevate bool `toml:"elevate" json:"elevate"`
	// Args are passed to the transfer tool unchanged, in order.
	Args []string `toml:"args" json:"args"`
	// Exclude lists paths, relative to the source directory, that are
	// neither watched nor transferred.
	Exclude []string `toml:"exclude" json:"exclude"`
	// Ignore lists gitignore-style patterns, added to those in .roninignore.
	Ignore []string `toml:"ignore" json:"ignore"`

	file string
	dir  string
}

// Load finds and reads the manifest in sourceDir.
func Load(sourceDir string) (*Manifest, error) {
	dir, err := rfs.NewOSFilesystem().ResolveDir(sourceDir)
	if err != nil {
		return nil, &ronin.ConfigurationError{Source: sourceDir, Err: err}
	}

	for _, name := range []string{TOMLFileName, JSONFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, &ronin.ConfigurationError{Source: path, Err: err}
		}
		return ReadFromFile(path)
	}

	return nil, &ronin.ConfigurationError{
		Source: dir,
		Err:    fmt.Errorf("no %s or %s found", TOMLFileName, JSONFileName),
	}
}

// ReadFromFile reads and validates a manifest file. The format is chosen by
// extension; the source directory is the file's directory.
func ReadFromFile(path string) (*Manifest, error) {
	m := &Manifest{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ronin.ConfigurationError{Source: path, Err: err}
		}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, &ronin.ConfigurationError{Source: path, Err: fmt.Errorf("decoding manifest: %w", err)}
		}
	default:
		if _, err := toml.DecodeFile(path, m); err != nil {
			return nil, &ronin.ConfigurationError{Source: path, Err: fmt.Errorf("decoding manifest: %w", err)}
		}
	}

	dir, err := rfs.NormalizePath(filepath.Dir(path))
	if err != nil {
		return nil, &ronin.ConfigurationError{Source: path, Err: err}
	}
	m.file = path
	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the required fields and the exclusion list.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Type) == "" {
		return m.fieldError("type", errors.New("required"))
	}
	if strings.TrimSpace(m.Path) == "" {
		return m.fieldError("path", errors.New("required"))
	}

	for _, e := range m.Exclude {
		if strings.TrimSpace(e) == "" {
			return m.fieldError("exclude", errors.New("empty entry"))
		}
	}
	if m.dir == "" {
		return nil
	}
	for _, p := range m.ExcludePaths() {
		if p == m.dir {
			return m.fieldError("exclude", fmt.Errorf("%q excludes the source directory itself", p))
		}
	}

	target, err := m.Target()
	if err != nil {
		return m.fieldError("path", err)
	}
	if target == m.dir {
		return m.fieldError("path", errors.New("destination is the source directory"))
	}
	if rfs.Contains(m.dir, target) && !m.excludes(target) {
		return m.fieldError("path", fmt.Errorf("destination %q is inside the source directory and not excluded", target))
	}
	return nil
}

func (m *Manifest) fieldError(field string, err error) error {
	return &ronin.ConfigurationError{Source: m.file, Field: field, Err: err}
}

func (m *Manifest) excludes(path string) bool {
	for _, e := range m.ExcludePaths() {
		if rfs.Contains(e, path) {
			return true
		}
	}
	return false
}

// File returns the path the manifest was read from.
func (m *Manifest) File() string { return m.file }

// SourceDir returns the normalized directory the manifest governs.
func (m *Manifest) SourceDir() string { return m.dir }

// Target returns the normalized destination directory.
func (m *Manifest) Target() (string, error) {
	return rfs.NormalizePath(m.Path)
}

// ExcludePaths resolves the exclusion fragments against the source
// directory. Absolute entries are kept as given.
func (m *Manifest) ExcludePaths() []string {
	out := make([]string, 0, len(m.Exclude))
	for _, e := range m.Exclude {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !filepath.IsAbs(e) && !strings.HasPrefix(e, "~") {
			e = filepath.Join(m.dir, e)
		}
		if p, err := rfs.NormalizePath(e); err == nil {
			e = p
		}
		out = append(out, e)
	}
	return out
}

// Filter builds the path filter for the source directory from the
// exclusion list, the manifest's ignore patterns and .roninignore.
func (m *Manifest) Filter() (*rfs.PathFilter, error) {
	patterns, err := rfs.LoadIgnorePatterns(m.dir, m.Ignore)
	if err != nil {
		return nil, &ronin.ConfigurationError{Source: filepath.Join(m.dir, rfs.IgnoreFileName), Err: err}
	}
	filter, err := rfs.NewPathFilter(m.dir, m.ExcludePaths(), patterns)
	if err != nil {
		return nil, &ronin.ConfigurationError{Source: m.file, Field: "exclude", Err: err}
	}
	return filter, nil
}
