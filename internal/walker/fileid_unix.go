//go:build unix

package walker

import (
	"os"
	"syscall"
)

// fileID identifies a filesystem object by device and inode, so two
// paths reaching the same object (symlinks, bind mounts) compare equal.
type fileID struct {
	dev uint64
	ino uint64
}

func identityOf(path string, info os.FileInfo) fileID {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return fileID{dev: uint64(stat.Dev), ino: stat.Ino} //nolint:unconvert // platform-dependent type
	}
	return fileID{ino: hashPath(path)}
}

// hashPath is the fallback identity when Stat_t is unavailable.
func hashPath(path string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= 1099511628211
	}
	return h
}
