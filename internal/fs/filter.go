package fs

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// RootKind records what an exclusion root was when the filter was built.
type RootKind int

const (
	// RootMissing roots did not exist at load time. They are treated as
	// potential directories: a file has no descendants, so this only
	// matters if a directory appears there later.
	RootMissing RootKind = iota
	RootFile
	RootDir
)

func (k RootKind) String() string {
	switch k {
	case RootFile:
		return "file"
	case RootDir:
		return "dir"
	default:
		return "missing"
	}
}

// ExclusionRoot is a normalized exclusion path and its kind.
type ExclusionRoot struct {
	Path string
	Kind RootKind
}

// PathFilter decides whether a path is excluded from snapshots and events.
// A path is excluded if it equals an exclusion root, is a descendant of a
// directory exclusion root, or matches one of the gitignore-style patterns
// relative to the base directory.
//
// All paths are compared in normalized form (see NormalizePath). Roots are
// normalized once in NewPathFilter; callers pass paths built from a
// normalized walk root, so IsExcluded itself does no I/O.
type PathFilter struct {
	base     string
	roots    []ExclusionRoot
	exact    map[string]struct{}
	patterns []string
	matcher  *ignore.GitIgnore
}

// NewPathFilter builds a filter for the tree rooted at base.
// roots are exclusion paths; relative roots are taken relative to base.
// patterns are gitignore-style lines matched against base-relative paths.
func NewPathFilter(base string, roots []string, patterns []string) (*PathFilter, error) {
	normBase, err := NormalizePath(base)
	if err != nil {
		return nil, err
	}

	f := &PathFilter{
		base:  normBase,
		exact: make(map[string]struct{}, len(roots)),
	}

	for _, raw := range roots {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !filepath.IsAbs(raw) && raw != "~" && !strings.HasPrefix(raw, "~/") {
			raw = filepath.Join(normBase, raw)
		}
		p, err := normalizeRoot(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := f.exact[p]; dup {
			continue
		}
		f.exact[p] = struct{}{}
		f.roots = append(f.roots, ExclusionRoot{Path: p, Kind: kindOf(p)})
	}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		f.patterns = append(f.patterns, p)
	}
	if len(f.patterns) > 0 {
		f.matcher = ignore.CompileIgnoreLines(f.patterns...)
	}

	return f, nil
}

// normalizeRoot normalizes an exclusion root without resolving its last
// element, so excluding a symlink excludes the link and not its target.
func normalizeRoot(raw string) (string, error) {
	abs, err := filepath.Abs(ExpandHome(raw))
	if err != nil {
		return "", err
	}
	parent, err := NormalizePath(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	if parent == abs {
		return abs, nil
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}

func kindOf(p string) RootKind {
	info, err := os.Stat(p)
	switch {
	case err != nil:
		return RootMissing
	case info.IsDir():
		return RootDir
	default:
		return RootFile
	}
}

// Base returns the normalized directory patterns are relative to.
func (f *PathFilter) Base() string {
	return f.base
}

// Roots returns the normalized exclusion roots in configuration order.
func (f *PathFilter) Roots() []ExclusionRoot {
	if f == nil {
		return nil
	}
	out := make([]ExclusionRoot, len(f.roots))
	copy(out, f.roots)
	return out
}

// RootPaths returns the normalized exclusion root paths.
func (f *PathFilter) RootPaths() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.roots))
	for i, r := range f.roots {
		out[i] = r.Path
	}
	return out
}

// Patterns returns the gitignore-style patterns.
func (f *PathFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.patterns))
	copy(out, f.patterns)
	return out
}

// PrunePatterns expands the roots into glob patterns: each root itself,
// plus "<root>/*" for directory roots.
func (f *PathFilter) PrunePatterns() []string {
	out := make([]string, 0, len(f.roots)*2)
	for _, r := range f.roots {
		out = append(out, r.Path)
		if r.Kind == RootDir {
			out = append(out, filepath.Join(r.Path, "*"))
		}
	}
	return out
}

// IsExcluded reports whether path is excluded.
func (f *PathFilter) IsExcluded(path string) bool {
	return f.match(path, false)
}

// IsExcludedDir is IsExcluded for a path known to be a directory, so that
// directory-only patterns ("build/") also apply.
func (f *PathFilter) IsExcludedDir(path string) bool {
	return f.match(path, true)
}

func (f *PathFilter) match(path string, isDir bool) bool {
	if f == nil {
		return false
	}
	p := filepath.Clean(path)

	if _, ok := f.exact[p]; ok {
		return true
	}
	for _, r := range f.roots {
		if r.Kind != RootFile && isDescendant(p, r.Path) {
			return true
		}
	}

	if f.matcher == nil || !isDescendant(p, f.base) {
		return false
	}
	rel, err := filepath.Rel(f.base, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if f.matcher.MatchesPath(rel) {
		return true
	}
	return isDir && f.matcher.MatchesPath(rel+"/")
}

// isDescendant reports whether p lies strictly beneath dir.
func isDescendant(p, dir string) bool {
	if dir == string(filepath.Separator) {
		return p != dir && strings.HasPrefix(p, dir)
	}
	return strings.HasPrefix(p, dir+string(filepath.Separator))
}

// Contains reports whether p is dir itself or lies beneath it.
func Contains(dir, p string) bool {
	return p == dir || isDescendant(p, dir)
}
