package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OSFilesystem is the real filesystem implementation used by the snapshot
// walker and the CLI. It only reads: stat, lstat, and directory listings.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem that operates on the real filesystem.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// Stat returns file info for path, following symlinks.
func (m *OSFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Lstat returns file info for path without following a final symlink.
func (m *OSFilesystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// ReadDir lists the direct children of a directory, sorted by name.
func (m *OSFilesystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// ResolveDir normalizes rawPath and verifies that it is an existing directory.
// A path naming a regular file resolves to its parent directory, so a
// manifest path can be passed directly.
func (m *OSFilesystem) ResolveDir(rawPath string) (string, error) {
	p, err := NormalizePath(rawPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return "", fmt.Errorf("not a directory or regular file: %s", p)
		}
		p = filepath.Dir(p)
	}
	return p, nil
}

// NormalizePath returns the absolute, cleaned form of rawPath with symlinks
// resolved on its longest existing prefix. Paths that do not exist yet keep
// their missing tail, so two spellings of the same location compare equal
// whether or not the location exists.
func NormalizePath(rawPath string) (string, error) {
	p, err := filepath.Abs(ExpandHome(rawPath))
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			// Permission problems and the like: compare on the lexical form.
			return p, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
