// Package snapshot records the state of a directory tree and compares two
// recordings.
//
// A Snapshot is taken by a single walk. Excluded subtrees are pruned during
// the walk: their entries are never stat'd and never descended into, which
// is what keeps snapshots of trees with large excluded directories cheap.
// The walk tolerates concurrent mutation: directories that vanish list as
// empty and entries that cannot be stat'd are skipped.
package snapshot

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	rfs "ronin-go/internal/fs"
	"ronin-go/internal/ronin"
)

// FileSystem is the read-only view of a filesystem the walker needs.
type FileSystem interface {
	// Stat follows symlinks; it is only used for the root.
	Stat(path string) (fs.FileInfo, error)

	// Lstat is used for every entry below the root, so symlinks are
	// recorded but never followed.
	Lstat(path string) (fs.FileInfo, error)

	// ReadDir lists a directory's direct children.
	ReadDir(path string) ([]fs.DirEntry, error)
}

// Entry is the recorded metadata of one path.
type Entry struct {
	Path    string
	ID      Identity
	IsDir   bool
	ModTime time.Time
	Size    int64
	Mode    fs.FileMode
	Sys     any // raw platform stat data, kept opaque
}

// Snapshot is an immutable record of a directory tree at one instant.
type Snapshot struct {
	root      string
	recursive bool
	excluded  []string
	takenAt   time.Time

	entries map[string]*Entry
	// byID lists every path recorded for an identity, in walk order.
	// More than one path means hard links.
	byID map[Identity][]string
}

// Take walks root and returns its snapshot. When recursive is false only
// root and its direct children are recorded. filter may be nil; fsys nil
// means the real filesystem.
//
// The only error is *ronin.RootUnavailableError, returned when root itself
// cannot be stat'd or listed.
func Take(root string, recursive bool, filter *rfs.PathFilter, fsys FileSystem) (*Snapshot, error) {
	if fsys == nil {
		fsys = rfs.NewOSFilesystem()
	}

	normRoot, err := rfs.NormalizePath(root)
	if err != nil {
		return nil, &ronin.RootUnavailableError{Root: root, Err: err}
	}

	info, err := fsys.Stat(normRoot)
	if err != nil {
		return nil, &ronin.RootUnavailableError{Root: normRoot, Err: err}
	}

	s := &Snapshot{
		root:      normRoot,
		recursive: recursive,
		excluded:  filter.RootPaths(),
		takenAt:   time.Now(),
		entries:   make(map[string]*Entry),
		byID:      make(map[Identity][]string),
	}
	if filter.IsExcludedDir(normRoot) {
		return s, nil
	}

	s.record(normRoot, info)
	if !info.IsDir() {
		return s, nil
	}

	w := &walker{fsys: fsys, filter: filter, recursive: recursive, snap: s}
	if err := w.walk(normRoot, true); err != nil {
		return nil, &ronin.RootUnavailableError{Root: normRoot, Err: err}
	}
	return s, nil
}

type walker struct {
	fsys      FileSystem
	filter    *rfs.PathFilter
	recursive bool
	snap      *Snapshot
}

// walk records the children of dir, then descends into the recorded
// directories. Only a failure to list the root is returned.
func (w *walker) walk(dir string, isRoot bool) error {
	children, err := w.fsys.ReadDir(dir)
	if err != nil {
		// A directory deleted between discovery and listing is empty.
		// Anything else below the root is skipped the same way; at the
		// root it means the tree is not accessible.
		if isRoot && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if len(children) == 0 {
			return nil
		}
	}
	slices.SortFunc(children, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	var subdirs []string
	for _, d := range children {
		p := filepath.Join(dir, d.Name())
		if d.IsDir() {
			if w.filter.IsExcludedDir(p) {
				continue
			}
		} else if w.filter.IsExcluded(p) {
			continue
		}

		info, ok := w.stat(p)
		if !ok {
			continue
		}
		if info.IsDir() && w.filter.IsExcludedDir(p) {
			// The listing reported a different type than the stat.
			continue
		}
		w.snap.record(p, info)
		if info.IsDir() {
			subdirs = append(subdirs, p)
		}
	}

	if !w.recursive {
		return nil
	}
	for _, sub := range subdirs {
		_ = w.walk(sub, false)
	}
	return nil
}

// stat returns the child's info, or false if it vanished or is unreadable.
func (w *walker) stat(p string) (fs.FileInfo, bool) {
	info, err := w.fsys.Lstat(p)
	if err != nil {
		return nil, false
	}
	return info, true
}

func (s *Snapshot) record(p string, info fs.FileInfo) {
	id := identityOf(p, info)
	s.entries[p] = &Entry{
		Path:    p,
		ID:      id,
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Mode:    info.Mode(),
		Sys:     info.Sys(),
	}
	s.byID[id] = append(s.byID[id], p)
}

// Root returns the normalized root path.
func (s *Snapshot) Root() string { return s.root }

// Recursive reports whether subdirectories were descended.
func (s *Snapshot) Recursive() bool { return s.recursive }

// Excluded returns the exclusion roots active when the snapshot was taken.
func (s *Snapshot) Excluded() []string {
	return slices.Clone(s.excluded)
}

// TakenAt returns when the walk started.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Len returns the number of recorded entries, root included.
func (s *Snapshot) Len() int { return len(s.entries) }

// Paths returns every recorded path, sorted.
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Has reports whether path was recorded.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.entries[path]
	return ok
}

// Entry returns a copy of the metadata recorded for path.
func (s *Snapshot) Entry(path string) (Entry, bool) {
	e, ok := s.entries[path]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// PathOf returns the first path, in walk order, recorded for id.
func (s *Snapshot) PathOf(id Identity) (string, bool) {
	paths := s.byID[id]
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// Aliases returns every path recorded for id, in walk order.
func (s *Snapshot) Aliases(id Identity) []string {
	return slices.Clone(s.byID[id])
}
