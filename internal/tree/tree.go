// Package tree reconstructs a nested directory/file tree from the
// walker's stream, mirroring filesystem structure exactly.
//
// Subtree sizes and the empty-directory list cannot be finalized while
// streaming because the worker pool delivers files in arbitrary order;
// both are computed in a single bottom-up pass once traversal has
// completed.
package tree

import (
	"path/filepath"
	"sort"

	"dirscan/internal/scan"
)

// Builder accumulates walker output into a tree.
type Builder struct {
	root   *scan.DirectoryEntry
	byPath map[string]*scan.DirectoryEntry
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{byPath: make(map[string]*scan.DirectoryEntry)}
}

// AddDir registers a directory. The first directory added becomes the
// root. Parents are expected before children (the walker guarantees
// this) but missing intermediates are created defensively.
func (b *Builder) AddDir(path string) *scan.DirectoryEntry {
	return b.ensure(path)
}

// AddFile attaches a file entry beneath its parent directory.
func (b *Builder) AddFile(f *scan.FileEntry) {
	parent := b.ensure(filepath.Dir(f.Path))
	parent.Files = append(parent.Files, f)
}

func (b *Builder) ensure(path string) *scan.DirectoryEntry {
	if node, ok := b.byPath[path]; ok {
		return node
	}

	node := &scan.DirectoryEntry{
		Path: path,
		Name: filepath.Base(path),
	}
	b.byPath[path] = node

	if b.root == nil {
		b.root = node
		return node
	}

	parent := b.ensure(filepath.Dir(path))
	parent.Subdirs = append(parent.Subdirs, node)
	return node
}

// Finish freezes the tree: files within each directory are sorted by
// name for deterministic output, subtree sizes are aggregated bottom-up
// and the empty-directory list is collected. A directory is empty when
// its entire subtree holds zero files, so a chain of nested empty
// subdirectories is reported at every level. Returns a nil root when
// nothing was added.
func (b *Builder) Finish() (*scan.DirectoryEntry, []string) {
	if b.root == nil {
		return nil, nil
	}

	var emptyDirs []string
	var walk func(node *scan.DirectoryEntry) (size int64, files int)
	walk = func(node *scan.DirectoryEntry) (int64, int) {
		sort.Slice(node.Files, func(i, j int) bool {
			return node.Files[i].Path < node.Files[j].Path
		})

		var size int64
		files := len(node.Files)
		for _, f := range node.Files {
			size += f.Size
		}
		for _, sub := range node.Subdirs {
			subSize, subFiles := walk(sub)
			size += subSize
			files += subFiles
		}

		node.TotalSize = size
		if files == 0 {
			emptyDirs = append(emptyDirs, node.Path)
		}
		return size, files
	}
	walk(b.root)

	sort.Strings(emptyDirs)
	return b.root, emptyDirs
}

// Root returns the current root without freezing. Mostly useful in
// tests.
func (b *Builder) Root() *scan.DirectoryEntry { return b.root }
