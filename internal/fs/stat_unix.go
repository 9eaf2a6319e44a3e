//go:build unix

package fs

import (
	"io/fs"
	"syscall"
)

// FileID extracts the device and inode numbers from a FileInfo.
// ok is false when the FileInfo does not carry a *syscall.Stat_t,
// which happens with mock filesystems.
func FileID(info fs.FileInfo) (dev, ino uint64, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return uint64(stat.Dev), uint64(stat.Ino), true
}
