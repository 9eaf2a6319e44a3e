package fs

import (
	"os"
	"path/filepath"
	"testing"
)

// newTree creates a small source tree:
//
//	a.txt
//	b/c.txt
//	build/out.o
//	notes.log
func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"b", "build"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	for _, f := range []string{"a.txt", "b/c.txt", "build/out.o", "notes.log"} {
		if err := os.WriteFile(filepath.Join(root, f), []byte(f), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	root, err := NormalizePath(root)
	if err != nil {
		t.Fatalf("NormalizePath() error = %v", err)
	}
	return root
}

func TestPathFilter_IsExcluded(t *testing.T) {
	root := newTree(t)

	tests := []struct {
		name     string
		roots    []string
		patterns []string
		path     string
		want     bool
	}{
		{
			name:  "exact directory root",
			roots: []string{"b"},
			path:  filepath.Join(root, "b"),
			want:  true,
		},
		{
			name:  "descendant of directory root",
			roots: []string{"b"},
			path:  filepath.Join(root, "b", "c.txt"),
			want:  true,
		},
		{
			name:  "deep descendant of directory root",
			roots: []string{"b"},
			path:  filepath.Join(root, "b", "x", "y", "z"),
			want:  true,
		},
		{
			name:  "sibling with shared name prefix",
			roots: []string{"b"},
			path:  filepath.Join(root, "bb"),
			want:  false,
		},
		{
			name:  "exact file root",
			roots: []string{"a.txt"},
			path:  filepath.Join(root, "a.txt"),
			want:  true,
		},
		{
			name:  "file root has no descendants",
			roots: []string{"a.txt"},
			path:  filepath.Join(root, "a.txt", "child"),
			want:  false,
		},
		{
			name:  "missing root treated as potential directory",
			roots: []string{"later"},
			path:  filepath.Join(root, "later", "file"),
			want:  true,
		},
		{
			name:  "absolute root",
			roots: []string{filepath.Join(root, "build")},
			path:  filepath.Join(root, "build", "out.o"),
			want:  true,
		},
		{
			name:  "dot segments normalized",
			roots: []string{"./b/../build"},
			path:  filepath.Join(root, "build"),
			want:  true,
		},
		{
			name:  "unrelated path",
			roots: []string{"b"},
			path:  filepath.Join(root, "a.txt"),
			want:  false,
		},
		{
			name:  "tilde fragment is relative to base",
			roots: []string{"~backup"},
			path:  filepath.Join(root, "~backup", "old.txt"),
			want:  true,
		},
		{
			name:     "basename pattern",
			patterns: []string{"*.log"},
			path:     filepath.Join(root, "notes.log"),
			want:     true,
		},
		{
			name:     "pattern below base",
			patterns: []string{"*.o"},
			path:     filepath.Join(root, "build", "out.o"),
			want:     true,
		},
		{
			name:     "pattern does not match outside base",
			patterns: []string{"*.log"},
			path:     filepath.Join(filepath.Dir(root), "other.log"),
			want:     false,
		},
		{
			name:     "directory pattern matches contents",
			patterns: []string{"build/"},
			path:     filepath.Join(root, "build", "out.o"),
			want:     true,
		},
		{
			name: "no rules matches nothing",
			path: filepath.Join(root, "a.txt"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewPathFilter(root, tt.roots, tt.patterns)
			if err != nil {
				t.Fatalf("NewPathFilter() error = %v", err)
			}
			if got := f.IsExcluded(tt.path); got != tt.want {
				t.Errorf("IsExcluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathFilter_IsExcludedDir(t *testing.T) {
	root := newTree(t)
	f, err := NewPathFilter(root, nil, []string{"build/"})
	if err != nil {
		t.Fatalf("NewPathFilter() error = %v", err)
	}

	dir := filepath.Join(root, "build")
	if f.IsExcluded(dir) {
		t.Errorf("IsExcluded(%q) = true, want false for directory-only pattern", dir)
	}
	if !f.IsExcludedDir(dir) {
		t.Errorf("IsExcludedDir(%q) = false, want true", dir)
	}
}

func TestPathFilter_RootKinds(t *testing.T) {
	root := newTree(t)
	f, err := NewPathFilter(root, []string{"b", "a.txt", "missing", "b"}, nil)
	if err != nil {
		t.Fatalf("NewPathFilter() error = %v", err)
	}

	roots := f.Roots()
	if len(roots) != 3 {
		t.Fatalf("len(Roots()) = %d, want 3 (duplicates collapsed)", len(roots))
	}
	want := []RootKind{RootDir, RootFile, RootMissing}
	for i, r := range roots {
		if r.Kind != want[i] {
			t.Errorf("Roots()[%d].Kind = %v, want %v", i, r.Kind, want[i])
		}
	}
}

func TestPathFilter_PrunePatterns(t *testing.T) {
	root := newTree(t)
	f, err := NewPathFilter(root, []string{"b", "a.txt"}, nil)
	if err != nil {
		t.Fatalf("NewPathFilter() error = %v", err)
	}

	got := f.PrunePatterns()
	want := []string{
		filepath.Join(root, "b"),
		filepath.Join(root, "b", "*"),
		filepath.Join(root, "a.txt"),
	}
	if len(got) != len(want) {
		t.Fatalf("PrunePatterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PrunePatterns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPathFilter_SymlinkedBase(t *testing.T) {
	root := newTree(t)
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(root, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	f, err := NewPathFilter(link, []string{"b"}, nil)
	if err != nil {
		t.Fatalf("NewPathFilter() error = %v", err)
	}
	if f.Base() != root {
		t.Errorf("Base() = %q, want %q", f.Base(), root)
	}
	if !f.IsExcluded(filepath.Join(root, "b", "c.txt")) {
		t.Error("expected resolved path beneath excluded root to be excluded")
	}
}

func TestPathFilter_SymlinkRoot(t *testing.T) {
	root := newTree(t)
	if err := os.Symlink(filepath.Join(root, "b"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	f, err := NewPathFilter(root, []string{"link"}, nil)
	if err != nil {
		t.Fatalf("NewPathFilter() error = %v", err)
	}
	if got := f.RootPaths(); len(got) != 1 || got[0] != filepath.Join(root, "link") {
		t.Errorf("RootPaths() = %v, want the link itself", got)
	}
	if !f.IsExcluded(filepath.Join(root, "link")) {
		t.Error("symlink named as exclusion root not excluded")
	}
	for _, rel := range []string{"b", "b/c.txt"} {
		if p := filepath.Join(root, rel); f.IsExcluded(p) {
			t.Errorf("IsExcluded(%q) = true; the link target must stay tracked", p)
		}
	}
}

func TestPathFilter_Nil(t *testing.T) {
	var f *PathFilter
	if f.IsExcluded("/anything") {
		t.Error("nil filter should exclude nothing")
	}
}
