package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"dirscan/internal/scan"
)

// collect drains a walk into per-kind slices.
type collected struct {
	dirs  []*DirInfo
	files []*scan.FileEntry
	skips []*scan.SkippedEntry
}

func runWalk(t *testing.T, root string, opts scan.Options) collected {
	t.Helper()
	events, err := New(nil, nil).Walk(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("Walk(%s) failed: %v", root, err)
	}

	var c collected
	for ev := range events {
		switch ev.Kind {
		case EventDir:
			c.dirs = append(c.dirs, ev.Dir)
		case EventFile:
			c.files = append(c.files, ev.File)
		case EventSkip:
			c.skips = append(c.skips, ev.Skip)
		}
	}
	return c
}

func (c collected) filePaths() []string {
	paths := make([]string, len(c.files))
	for i, f := range c.files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

func TestWalkBasic(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), []byte("alpha"))
	mustWrite(t, filepath.Join(root, "sub", "b.JPG"), []byte("beta"))
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	c := runWalk(t, root, scan.Options{ComputeHash: true, Workers: 2})

	if len(c.dirs) != 3 {
		t.Errorf("got %d dirs, want 3", len(c.dirs))
	}
	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.JPG"),
	}
	if got := c.filePaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if len(c.skips) != 0 {
		t.Errorf("unexpected skips: %v", c.skips)
	}

	for _, f := range c.files {
		if f.Fingerprint == "" {
			t.Errorf("file %s has no fingerprint", f.Path)
		}
		if f.Size == 0 {
			t.Errorf("file %s has zero size", f.Path)
		}
	}

	// Extensions are lowercased without the dot.
	for _, f := range c.files {
		if filepath.Base(f.Path) == "b.JPG" && f.Ext != "jpg" {
			t.Errorf("Ext = %q, want jpg", f.Ext)
		}
	}
}

func TestWalkDirBeforeChildren(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "d1", "d2", "f"), []byte("x"))

	events, err := New(nil, nil).Walk(context.Background(), root, scan.Options{Workers: 1})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}

	seen := map[string]bool{}
	for ev := range events {
		switch ev.Kind {
		case EventDir:
			if ev.Dir.Parent != "" && !seen[ev.Dir.Parent] {
				t.Errorf("dir %s emitted before parent %s", ev.Dir.Path, ev.Dir.Parent)
			}
			seen[ev.Dir.Path] = true
		case EventFile:
			if !seen[filepath.Dir(ev.File.Path)] {
				t.Errorf("file %s emitted before its directory", ev.File.Path)
			}
		}
	}
}

func TestWalkMaxDepth(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "top.txt"), []byte("1"))
	mustWrite(t, filepath.Join(root, "l1", "mid.txt"), []byte("2"))
	mustWrite(t, filepath.Join(root, "l1", "l2", "deep.txt"), []byte("3"))

	c := runWalk(t, root, scan.Options{MaxDepth: 1, ComputeHash: true})

	want := []string{
		filepath.Join(root, "l1", "mid.txt"),
		filepath.Join(root, "top.txt"),
	}
	if got := c.filePaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	// Depth pruning is an option taking effect, not a failure.
	if len(c.skips) != 0 {
		t.Errorf("depth pruning produced skips: %v", c.skips)
	}
}

func TestWalkExcludes(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "keep.txt"), []byte("k"))
	mustWrite(t, filepath.Join(root, "skip.log"), []byte("s"))
	mustWrite(t, filepath.Join(root, "node_modules", "dep.js"), []byte("d"))

	c := runWalk(t, root, scan.Options{Excludes: []string{"*.log", "node_modules"}})

	want := []string{filepath.Join(root, "keep.txt")}
	if got := c.filePaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestWalkWithoutHashing(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "f"), []byte("data"))

	c := runWalk(t, root, scan.Options{ComputeHash: false})
	if len(c.files) != 1 {
		t.Fatalf("got %d files, want 1", len(c.files))
	}
	if c.files[0].Fingerprint != "" {
		t.Errorf("Fingerprint = %q, want empty with hashing disabled", c.files[0].Fingerprint)
	}
}

func TestWalkIdempotent(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a"), []byte("one"))
	mustWrite(t, filepath.Join(root, "s1", "b"), []byte("two"))
	mustWrite(t, filepath.Join(root, "s1", "s2", "c"), []byte("three"))

	first := runWalk(t, root, scan.Options{ComputeHash: true, Workers: 4})
	second := runWalk(t, root, scan.Options{ComputeHash: true, Workers: 4})

	if !reflect.DeepEqual(first.filePaths(), second.filePaths()) {
		t.Error("file sets differ across identical runs")
	}
	if len(first.dirs) != len(second.dirs) {
		t.Errorf("dir counts differ: %d vs %d", len(first.dirs), len(second.dirs))
	}
}

func TestWalkCancel(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		mustWrite(t, filepath.Join(root, "d", string(rune('a'+i)), "f"), []byte("x"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := New(nil, nil).Walk(ctx, root, scan.Options{})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}
	// The stream must terminate, not hang.
	n := 0
	for range events {
		n++
	}
	if n > 2 {
		t.Errorf("cancelled walk still emitted %d events", n)
	}
}

func TestResolveErrors(t *testing.T) {
	for _, path := range []string{"", "   ", filepath.Join(t.TempDir(), "missing")} {
		if _, err := Resolve(path); !errors.Is(err, scan.ErrInvalidPath) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidPath", path, err)
		}
	}

	file := filepath.Join(t.TempDir(), "plain")
	mustWrite(t, file, []byte("not a dir"))
	if _, err := Resolve(file); !errors.Is(err, scan.ErrInvalidPath) {
		t.Errorf("Resolve(file) error = %v, want ErrInvalidPath", err)
	}
}

func TestResolveCanonicalizes(t *testing.T) {
	dir := t.TempDir()
	messy := dir + string(filepath.Separator) + "." + string(filepath.Separator)
	got, err := Resolve(messy)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if got != dir && got != want {
		t.Errorf("Resolve() = %s, want %s", got, dir)
	}
}
