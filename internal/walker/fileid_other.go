//go:build !unix

package walker

import "os"

// fileID falls back to the canonical path on platforms without
// device/inode identities.
type fileID struct {
	path string
}

func identityOf(path string, _ os.FileInfo) fileID {
	return fileID{path: path}
}
