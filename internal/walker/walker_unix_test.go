//go:build unix

package walker

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"dirscan/internal/scan"
)

func TestWalkSymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	mustWrite(t, filepath.Join(sub, "f.txt"), []byte("data"))

	// sub/loop points back at the scan root.
	if err := os.Symlink(root, filepath.Join(sub, "loop")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	c := runWalk(t, root, scan.Options{ComputeHash: true})

	if len(c.files) != 1 {
		t.Errorf("got %d files, want 1", len(c.files))
	}

	found := false
	for _, s := range c.skips {
		if s.Reason == scan.SkipSymlinkCycle {
			found = true
		}
	}
	if !found {
		t.Errorf("no symlink-cycle skip recorded, skips = %v", c.skips)
	}
}

func TestWalkSymlinkToDirFollowedOnce(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	mustWrite(t, filepath.Join(outside, "o.txt"), []byte("out"))
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	c := runWalk(t, root, scan.Options{ComputeHash: true})

	// The linked file appears under the link path, inside the root.
	want := filepath.Join(root, "link", "o.txt")
	if got := c.filePaths(); len(got) != 1 || got[0] != want {
		t.Errorf("files = %v, want [%s]", got, want)
	}
}

func TestWalkDepthPrunedSymlinkTargetStaysReachable(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	target := filepath.Join(base, "target")
	mustWrite(t, filepath.Join(target, "o.txt"), []byte("out"))

	// a_sub/deep is discovered first and pruned by MaxDepth; z_link at
	// the root points at the same target and is within depth.
	if err := os.MkdirAll(filepath.Join(root, "a_sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(root, "a_sub", "deep")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(root, "z_link")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	c := runWalk(t, root, scan.Options{MaxDepth: 1, ComputeHash: true})

	want := filepath.Join(root, "z_link", "o.txt")
	if got := c.filePaths(); len(got) != 1 || got[0] != want {
		t.Errorf("files = %v, want [%s]", got, want)
	}
	for _, s := range c.skips {
		if s.Reason == scan.SkipSymlinkCycle {
			t.Errorf("pruned link misreported as cycle: %v", s)
		}
	}
}

func TestWalkPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "ok.txt"), []byte("fine"))
	locked := filepath.Join(root, "locked")
	mustWrite(t, filepath.Join(locked, "hidden.txt"), []byte("secret"))
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c := runWalk(t, root, scan.Options{ComputeHash: true})

	// The readable file survives and the unreadable dir is surfaced.
	want := []string{filepath.Join(root, "ok.txt")}
	if got := c.filePaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	found := false
	for _, s := range c.skips {
		if s.Path == locked && s.Reason == scan.SkipPermission {
			found = true
		}
	}
	if !found {
		t.Errorf("no permission skip for %s, skips = %v", locked, c.skips)
	}
}
