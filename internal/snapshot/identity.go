package snapshot

import (
	"fmt"
	"hash/fnv"
	"io/fs"

	rfs "ronin-go/internal/fs"
)

// Identity is the (device, inode) pair that survives a rename within one
// filesystem. Paths with the same identity are hard links to one object.
type Identity struct {
	Device uint64
	Inode  uint64
}

func (id Identity) String() string {
	return fmt.Sprintf("%d:%d", id.Device, id.Inode)
}

// Identifier is implemented by FileInfo.Sys values that carry their own
// identity, such as in-memory filesystems.
type Identifier interface {
	FileIdentity() (device, inode uint64)
}

// identityOf extracts the identity of info. Platforms without inode numbers
// fall back to a hash of the path, which turns every rename into a
// delete plus a create.
func identityOf(p string, info fs.FileInfo) Identity {
	if dev, ino, ok := rfs.FileID(info); ok {
		return Identity{Device: dev, Inode: ino}
	}
	if v, ok := info.Sys().(Identifier); ok {
		dev, ino := v.FileIdentity()
		return Identity{Device: dev, Inode: ino}
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(p))
	return Identity{Inode: h.Sum64()}
}
