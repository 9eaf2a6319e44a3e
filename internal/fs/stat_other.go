//go:build !unix

package fs

import "io/fs"

// FileID is not available without opening the file on this platform.
// Callers fall back to a path-derived identity.
func FileID(info fs.FileInfo) (dev, ino uint64, ok bool) {
	return 0, 0, false
}
