package tree

import (
	"reflect"
	"testing"

	"dirscan/internal/scan"
)

func TestBuilderStructure(t *testing.T) {
	b := New()
	b.AddDir("/root")
	b.AddDir("/root/sub")
	b.AddFile(&scan.FileEntry{Path: "/root/b.txt", Size: 10})
	b.AddFile(&scan.FileEntry{Path: "/root/a.txt", Size: 5})
	b.AddFile(&scan.FileEntry{Path: "/root/sub/c.txt", Size: 20})

	root, emptyDirs := b.Finish()
	if root == nil {
		t.Fatal("Finish() returned nil root")
	}
	if root.Path != "/root" || root.Name != "root" {
		t.Errorf("root = %s (%s), want /root (root)", root.Path, root.Name)
	}
	if len(emptyDirs) != 0 {
		t.Errorf("emptyDirs = %v, want none", emptyDirs)
	}

	// Files are sorted by path after Finish.
	if root.Files[0].Path != "/root/a.txt" || root.Files[1].Path != "/root/b.txt" {
		t.Errorf("root files out of order: %s, %s", root.Files[0].Path, root.Files[1].Path)
	}

	if len(root.Subdirs) != 1 || root.Subdirs[0].Path != "/root/sub" {
		t.Fatalf("subdirs = %v, want /root/sub", root.Subdirs)
	}
}

func TestBuilderBottomUpSizes(t *testing.T) {
	b := New()
	b.AddDir("/root")
	b.AddDir("/root/sub")
	b.AddFile(&scan.FileEntry{Path: "/root/x", Size: 1})
	b.AddFile(&scan.FileEntry{Path: "/root/sub/y", Size: 2})

	root, _ := b.Finish()
	if root.TotalSize != 3 {
		t.Errorf("root TotalSize = %d, want 3", root.TotalSize)
	}
	if sub := root.Subdirs[0]; sub.TotalSize != 2 {
		t.Errorf("sub TotalSize = %d, want 2", sub.TotalSize)
	}
}

func TestBuilderNestedEmptyDirs(t *testing.T) {
	// A chain of fileless directories is empty at every level.
	b := New()
	b.AddDir("/root")
	b.AddDir("/root/e1")
	b.AddDir("/root/e1/e2")
	b.AddDir("/root/full")
	b.AddFile(&scan.FileEntry{Path: "/root/full/f", Size: 1})

	_, emptyDirs := b.Finish()
	want := []string{"/root/e1", "/root/e1/e2"}
	if !reflect.DeepEqual(emptyDirs, want) {
		t.Errorf("emptyDirs = %v, want %v", emptyDirs, want)
	}
}

func TestBuilderRootWithoutFilesIsEmpty(t *testing.T) {
	b := New()
	b.AddDir("/root")

	_, emptyDirs := b.Finish()
	want := []string{"/root"}
	if !reflect.DeepEqual(emptyDirs, want) {
		t.Errorf("emptyDirs = %v, want %v", emptyDirs, want)
	}
}

func TestBuilderCreatesMissingIntermediates(t *testing.T) {
	b := New()
	b.AddDir("/root")
	// No AddDir for /root/deep; AddFile must create it.
	b.AddFile(&scan.FileEntry{Path: "/root/deep/f", Size: 1})

	root, _ := b.Finish()
	if len(root.Subdirs) != 1 || root.Subdirs[0].Path != "/root/deep" {
		t.Fatalf("missing intermediate not created: %v", root.Subdirs)
	}
}

func TestBuilderEmptyInput(t *testing.T) {
	root, emptyDirs := New().Finish()
	if root != nil || emptyDirs != nil {
		t.Errorf("Finish() on empty builder = %v, %v; want nil, nil", root, emptyDirs)
	}
}
