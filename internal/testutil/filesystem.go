package testutil

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// MockFile represents a file or directory in the mock filesystem.
// Hard links share one MockFile.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
	Device      uint64
	Inode       uint64
}

// FileIdentity exposes the mock inode to the snapshot walker.
func (f *MockFile) FileIdentity() (device, inode uint64) {
	return f.Device, f.Inode
}

// MockFilesystem is an in-memory tree for testing the walker. Paths are
// absolute and cleaned. Safe for concurrent use.
type MockFilesystem struct {
	mu        sync.Mutex
	files     map[string]*MockFile
	nextInode uint64
	now       time.Time

	statErr    map[string]error
	readDirErr map[string]error
	stats      []string
	onReadDir  func(path string)
}

// NewMockFilesystem creates an empty mock filesystem.
func NewMockFilesystem() *MockFilesystem {
	return &MockFilesystem{
		files:      make(map[string]*MockFile),
		nextInode:  100,
		now:        time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		statErr:    make(map[string]error),
		readDirErr: make(map[string]error),
	}
}

func (m *MockFilesystem) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *MockFilesystem) newFile(content []byte, dir bool) *MockFile {
	m.nextInode++
	perm := fs.FileMode(0644)
	if dir {
		perm = 0755
	}
	return &MockFile{
		Content:     content,
		Permissions: perm,
		ModTime:     m.tick(),
		IsDirectory: dir,
		Device:      1,
		Inode:       m.nextInode,
	}
}

// AddFile adds a regular file with a fresh inode. Missing parents are created.
func (m *MockFilesystem) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.addParents(path)
	m.files[path] = m.newFile(content, false)
}

// AddDirectory adds a directory with a fresh inode. Missing parents are created.
func (m *MockFilesystem) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.addParents(path)
	if _, ok := m.files[path]; !ok {
		m.files[path] = m.newFile(nil, true)
	}
}

func (m *MockFilesystem) addParents(path string) {
	for dir := filepath.Dir(path); dir != path; dir, path = filepath.Dir(dir), dir {
		if _, ok := m.files[dir]; ok {
			return
		}
		m.files[dir] = m.newFile(nil, true)
	}
}

// Link adds newPath as a hard link to existing.
func (m *MockFilesystem) Link(existing, newPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	newPath = filepath.Clean(newPath)
	m.addParents(newPath)
	m.files[newPath] = m.files[filepath.Clean(existing)]
}

// Write replaces a file's content in place, keeping its inode.
func (m *MockFilesystem) Write(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.files[filepath.Clean(path)]
	f.Content = content
	f.ModTime = m.tick()
}

// Replace swaps the file at path for a new inode, like an atomic save.
func (m *MockFilesystem) Replace(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = m.newFile(content, false)
}

// Rename moves path and everything beneath it to newPath.
func (m *MockFilesystem) Rename(path, newPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path, newPath = filepath.Clean(path), filepath.Clean(newPath)
	m.addParents(newPath)
	for p, f := range m.files {
		if p == path {
			delete(m.files, p)
			m.files[newPath] = f
		} else if rest, ok := strings.CutPrefix(p, path+string(filepath.Separator)); ok {
			delete(m.files, p)
			m.files[filepath.Join(newPath, rest)] = f
		}
	}
}

// Remove deletes path and everything beneath it.
func (m *MockFilesystem) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(filepath.Clean(path))
}

func (m *MockFilesystem) remove(path string) {
	for p := range m.files {
		if p == path || strings.HasPrefix(p, path+string(filepath.Separator)) {
			delete(m.files, p)
		}
	}
}

// FailStat makes Stat and Lstat of path return err.
func (m *MockFilesystem) FailStat(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statErr[filepath.Clean(path)] = err
}

// FailReadDir makes ReadDir of path return err.
func (m *MockFilesystem) FailReadDir(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDirErr[filepath.Clean(path)] = err
}

// OnReadDir registers fn to run before each directory listing, outside the
// lock, so tests can mutate the tree mid-walk.
func (m *MockFilesystem) OnReadDir(fn func(path string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReadDir = fn
}

// Stats returns every path passed to Stat or Lstat, in call order.
func (m *MockFilesystem) Stats() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.stats)
}

func (m *MockFilesystem) Stat(path string) (fs.FileInfo, error) {
	return m.lookup("stat", path)
}

// Lstat is Stat; the mock has no symlinks.
func (m *MockFilesystem) Lstat(path string) (fs.FileInfo, error) {
	return m.lookup("lstat", path)
}

func (m *MockFilesystem) lookup(op, path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.stats = append(m.stats, path)

	if err := m.statErr[path]; err != nil {
		return nil, &fs.PathError{Op: op, Path: path, Err: err}
	}
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
	}
	return newMockFileInfo(path, f), nil
}

func (m *MockFilesystem) ReadDir(path string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	hook := m.onReadDir
	m.mu.Unlock()
	if hook != nil {
		hook(path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)

	if err := m.readDirErr[path]; err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: err}
	}
	dir, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: fs.ErrNotExist}
	}
	if !dir.IsDirectory {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: fs.ErrInvalid}
	}

	var out []fs.DirEntry
	for p, f := range m.files {
		if p != path && filepath.Dir(p) == path {
			out = append(out, fs.FileInfoToDirEntry(newMockFileInfo(p, f)))
		}
	}
	slices.SortFunc(out, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out, nil
}

// mockFileInfo implements fs.FileInfo. Values are copied at creation so a
// later Write does not change an info already handed out.
type mockFileInfo struct {
	name     string
	size     int64
	mode     fs.FileMode
	modTime  time.Time
	isDir    bool
	mockFile *MockFile
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	mode := f.Permissions
	if f.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:     filepath.Base(path),
		size:     int64(len(f.Content)),
		mode:     mode,
		modTime:  f.ModTime,
		isDir:    f.IsDirectory,
		mockFile: f,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.mockFile }
