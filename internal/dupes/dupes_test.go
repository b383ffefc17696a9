package dupes

import (
	"reflect"
	"testing"

	"dirscan/internal/scan"
)

func entry(path string, size int64, fingerprint string) *scan.FileEntry {
	return &scan.FileEntry{Path: path, Size: size, Fingerprint: fingerprint}
}

func TestGroupExactDuplicates(t *testing.T) {
	entries := []*scan.FileEntry{
		entry("/a/one.txt", 100, "aaaa"),
		entry("/b/unique.txt", 50, "bbbb"),
		entry("/b/copy.txt", 100, "aaaa"),
	}

	groups := Exact{}.Group(entries)
	if len(groups) != 1 {
		t.Fatalf("Group() returned %d groups, want 1", len(groups))
	}

	g := groups[0]
	if g.Count != 2 {
		t.Errorf("Count = %d, want 2", g.Count)
	}
	if g.SizeBytes != 100 {
		t.Errorf("SizeBytes = %d, want 100", g.SizeBytes)
	}
	if g.ReclaimableBytes != 100 {
		t.Errorf("ReclaimableBytes = %d, want 100", g.ReclaimableBytes)
	}
	wantPaths := []string{"/a/one.txt", "/b/copy.txt"}
	if !reflect.DeepEqual(g.Paths, wantPaths) {
		t.Errorf("Paths = %v, want %v", g.Paths, wantPaths)
	}
}

func TestGroupSizeDiscriminates(t *testing.T) {
	// Same fingerprint, different sizes: never one group.
	entries := []*scan.FileEntry{
		entry("/a", 100, "same"),
		entry("/b", 200, "same"),
	}
	if groups := (Exact{}).Group(entries); len(groups) != 0 {
		t.Errorf("Group() returned %d groups across sizes, want 0", len(groups))
	}
}

func TestGroupIgnoresMissingFingerprints(t *testing.T) {
	entries := []*scan.FileEntry{
		entry("/a", 100, ""),
		entry("/b", 100, ""),
	}
	if groups := (Exact{}).Group(entries); len(groups) != 0 {
		t.Errorf("Group() grouped unfingerprinted files: %d groups", len(groups))
	}
}

func TestGroupStableOrder(t *testing.T) {
	entries := []*scan.FileEntry{
		entry("/z1", 10, "zz"),
		entry("/a1", 20, "aa"),
		entry("/z2", 10, "zz"),
		entry("/a2", 20, "aa"),
	}

	first := Exact{}.Group(entries)
	second := Exact{}.Group(entries)
	if !reflect.DeepEqual(first, second) {
		t.Error("Group() is not deterministic across runs")
	}
	// First-seen fingerprint order: zz before aa.
	if first[0].Fingerprint != "zz" || first[1].Fingerprint != "aa" {
		t.Errorf("group order = %s, %s; want zz, aa", first[0].Fingerprint, first[1].Fingerprint)
	}
}

func TestTotalReclaimable(t *testing.T) {
	entries := []*scan.FileEntry{
		entry("/a", 100, "x"),
		entry("/b", 100, "x"),
		entry("/c", 100, "x"),
		entry("/d", 7, "y"),
		entry("/e", 7, "y"),
	}

	groups := Exact{}.Group(entries)
	var want int64
	for _, g := range groups {
		want += int64(g.Count-1) * g.SizeBytes
	}
	if got := TotalReclaimable(groups); got != want {
		t.Errorf("TotalReclaimable() = %d, want %d", got, want)
	}
	if want != 207 {
		t.Errorf("scenario sum = %d, want 207", want)
	}
}
