package snapshot_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	rfs "ronin-go/internal/fs"
	"ronin-go/internal/ronin"
	"ronin-go/internal/snapshot"
	"ronin-go/internal/testutil"
)

// mockRoot does not exist on disk, so path normalization leaves it as is.
const mockRoot = "/ronin-mock/src"

func p(rel string) string {
	if rel == "" {
		return mockRoot
	}
	return filepath.Join(mockRoot, rel)
}

func paths(rels ...string) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = p(r)
	}
	slices.Sort(out)
	return out
}

func newFilter(t *testing.T, roots []string, patterns []string) *rfs.PathFilter {
	t.Helper()
	f, err := rfs.NewPathFilter(mockRoot, roots, patterns)
	if err != nil {
		t.Fatalf("NewPathFilter() error = %v", err)
	}
	return f
}

func take(t *testing.T, m *testutil.MockFilesystem, recursive bool, filter *rfs.PathFilter) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.Take(mockRoot, recursive, filter, m)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	return s
}

func TestTake_RecordsTree(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	m.AddFile(p("a.txt"), []byte("a"))
	m.AddFile(p("b/c.txt"), []byte("cc"))
	m.AddDirectory(p("b/empty"))

	s := take(t, m, true, nil)

	want := paths("", "a.txt", "b", "b/c.txt", "b/empty")
	if got := s.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
	if s.Root() != mockRoot {
		t.Errorf("Root() = %q, want %q", s.Root(), mockRoot)
	}

	e, ok := s.Entry(p("b/c.txt"))
	if !ok {
		t.Fatal("Entry(b/c.txt) not found")
	}
	if e.Size != 2 || e.IsDir {
		t.Errorf("Entry(b/c.txt) = size %d dir %v, want size 2 file", e.Size, e.IsDir)
	}
	if got, _ := s.PathOf(e.ID); got != p("b/c.txt") {
		t.Errorf("PathOf(%v) = %q, want %q", e.ID, got, p("b/c.txt"))
	}
}

func TestTake_NonRecursive(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	m.AddFile(p("a.txt"), nil)
	m.AddFile(p("b/c.txt"), nil)

	s := take(t, m, false, nil)

	want := paths("", "a.txt", "b")
	if got := s.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
	if s.Recursive() {
		t.Error("Recursive() = true, want false")
	}
}

func TestTake_ExcludedSubtree(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	m.AddFile(p("a.txt"), nil)
	m.AddFile(p("b/c.txt"), nil)

	s := take(t, m, true, newFilter(t, []string{"b"}, nil))

	want := paths("", "a.txt")
	if got := s.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
	for _, st := range m.Stats() {
		if rfs.Contains(p("b"), st) {
			t.Errorf("excluded path %q was stat'd", st)
		}
	}
	if got := s.Excluded(); !slices.Equal(got, []string{p("b")}) {
		t.Errorf("Excluded() = %v, want [%s]", got, p("b"))
	}
}

func TestTake_ExcludedByPattern(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	m.AddFile(p("keep.txt"), nil)
	m.AddFile(p("debug.log"), nil)
	m.AddFile(p("sub/trace.log"), nil)
	m.AddFile(p("build/out.bin"), nil)

	s := take(t, m, true, newFilter(t, nil, []string{"*.log", "build/"}))

	want := paths("", "keep.txt", "sub")
	if got := s.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestTake_NoExcludedPathRecorded(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	for _, rel := range []string{
		"a.txt", "x/1", "x/y/2", "x/y/z/3", "node_modules/pkg/index.js",
		"docs/readme.md", "docs/tmp/scratch",
	} {
		m.AddFile(p(rel), nil)
	}

	tests := []struct {
		name  string
		roots []string
	}{
		{name: "single dir", roots: []string{"x"}},
		{name: "nested dir", roots: []string{"x/y"}},
		{name: "several", roots: []string{"node_modules", "docs/tmp", "a.txt"}},
		{name: "missing root", roots: []string{"nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			filter := newFilter(t, tt.roots, nil)
			s := take(t, m, true, filter)
			for _, path := range s.Paths() {
				for _, root := range filter.RootPaths() {
					if rfs.Contains(root, path) {
						t.Errorf("path %q under exclusion root %q was recorded", path, root)
					}
				}
			}
		})
	}
}

func TestTake_RootUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(m *testutil.MockFilesystem)
	}{
		{
			name:  "missing root",
			setup: func(m *testutil.MockFilesystem) {},
		},
		{
			name: "unreadable root",
			setup: func(m *testutil.MockFilesystem) {
				m.AddDirectory(mockRoot)
				m.FailReadDir(mockRoot, fs.ErrPermission)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := testutil.NewMockFilesystem()
			tt.setup(m)

			_, err := snapshot.Take(mockRoot, true, nil, m)
			var rootErr *ronin.RootUnavailableError
			if !errors.As(err, &rootErr) {
				t.Fatalf("Take() error = %v, want RootUnavailableError", err)
			}
			if !ronin.IsFatal(err) {
				t.Error("IsFatal() = false, want true")
			}
		})
	}
}

func TestTake_RootIsFile(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	m.AddFile(mockRoot, []byte("x"))

	s := take(t, m, true, nil)
	if got := s.Paths(); !slices.Equal(got, []string{mockRoot}) {
		t.Errorf("Paths() = %v, want [%s]", got, mockRoot)
	}
}

func TestTake_ConcurrentMutation(t *testing.T) {
	t.Parallel()

	t.Run("directory vanishes before listing", func(t *testing.T) {
		t.Parallel()
		m := testutil.NewMockFilesystem()
		m.AddFile(p("a.txt"), nil)
		m.AddFile(p("gone/child.txt"), nil)
		m.OnReadDir(func(path string) {
			if path == p("gone") {
				m.Remove(path)
			}
		})

		s := take(t, m, true, nil)
		want := paths("", "a.txt", "gone")
		if got := s.Paths(); !slices.Equal(got, want) {
			t.Errorf("Paths() = %v, want %v", got, want)
		}
	})

	t.Run("child vanishes before stat", func(t *testing.T) {
		t.Parallel()
		m := testutil.NewMockFilesystem()
		m.AddFile(p("a.txt"), nil)
		m.AddFile(p("b.txt"), nil)
		m.FailStat(p("b.txt"), fs.ErrNotExist)

		s := take(t, m, true, nil)
		want := paths("", "a.txt")
		if got := s.Paths(); !slices.Equal(got, want) {
			t.Errorf("Paths() = %v, want %v", got, want)
		}
	})

	t.Run("unreadable subdirectory", func(t *testing.T) {
		t.Parallel()
		m := testutil.NewMockFilesystem()
		m.AddFile(p("locked/secret"), nil)
		m.AddFile(p("open/file"), nil)
		m.FailReadDir(p("locked"), fs.ErrPermission)

		s := take(t, m, true, nil)
		want := paths("", "locked", "open", "open/file")
		if got := s.Paths(); !slices.Equal(got, want) {
			t.Errorf("Paths() = %v, want %v", got, want)
		}
	})
}

func TestTake_HardLinkAliases(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockFilesystem()
	m.AddFile(p("a.txt"), []byte("shared"))
	m.Link(p("a.txt"), p("z/link.txt"))

	s := take(t, m, true, nil)

	e, _ := s.Entry(p("a.txt"))
	want := []string{p("a.txt"), p("z/link.txt")}
	if got := s.Aliases(e.ID); !slices.Equal(got, want) {
		t.Errorf("Aliases() = %v, want %v", got, want)
	}
	if got, _ := s.PathOf(e.ID); got != p("a.txt") {
		t.Errorf("PathOf() = %q, want first in walk order %q", got, p("a.txt"))
	}
}

func TestTake_RealFilesystem(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "a")
	mustWrite(t, filepath.Join(root, "sub", "b.txt"), "b")
	mustWrite(t, filepath.Join(outside, "hidden.txt"), "h")
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	s, err := snapshot.Take(root, true, nil, nil)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}

	var rels []string
	for _, path := range s.Paths() {
		rel, _ := filepath.Rel(s.Root(), path)
		rels = append(rels, filepath.ToSlash(rel))
	}
	want := []string{".", "a.txt", "link", "sub", "sub/b.txt"}
	if !slices.Equal(rels, want) {
		t.Errorf("Paths() = %v, want %v", rels, want)
	}
	for _, rel := range rels {
		if strings.Contains(rel, "hidden") {
			t.Errorf("symlink target was followed: %q", rel)
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
