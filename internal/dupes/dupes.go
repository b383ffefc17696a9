// Package dupes groups file entries into exact-duplicate clusters.
//
// Grouping is a pure function over a scan's file entries: files are
// bucketed by exact byte size first (the cheap discriminator) and by
// content fingerprint within each size bucket. Only buckets holding two
// or more files become groups. Running it twice over the same entries
// yields identical groups in the same order.
//
// Alternative similarity strategies (perceptual image hashing, text
// shingling) plug in behind the same Strategy interface; only the
// exact-fingerprint strategy is implemented.
package dupes

import (
	"sort"

	"dirscan/internal/scan"
)

// Strategy turns a scan's file entries into duplicate groups.
type Strategy interface {
	Name() string
	Group(entries []*scan.FileEntry) []*scan.DuplicateGroup
}

// Exact groups files whose size and content fingerprint both match.
type Exact struct{}

// Name implements Strategy.
func (Exact) Name() string { return "exact" }

type bucketKey struct {
	size        int64
	fingerprint string
}

// Group buckets entries and emits groups with two or more members,
// ordered by first-seen fingerprint. Entries without a fingerprint
// (hashing disabled or skipped) are ignored. ReclaimableBytes assumes
// one copy of each group is kept.
func (Exact) Group(entries []*scan.FileEntry) []*scan.DuplicateGroup {
	buckets := make(map[bucketKey][]*scan.FileEntry)
	var order []bucketKey

	for _, entry := range entries {
		if entry.Fingerprint == "" {
			continue
		}
		key := bucketKey{size: entry.Size, fingerprint: entry.Fingerprint}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], entry)
	}

	var groups []*scan.DuplicateGroup
	for _, key := range order {
		files := buckets[key]
		if len(files) < 2 {
			continue
		}

		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		sort.Strings(paths)

		groups = append(groups, &scan.DuplicateGroup{
			Fingerprint:      key.fingerprint,
			SizeBytes:        key.size,
			Count:            len(files),
			Paths:            paths,
			ReclaimableBytes: int64(len(files)-1) * key.size,
		})
	}
	return groups
}

// TotalReclaimable sums the reclaimable bytes across groups.
func TotalReclaimable(groups []*scan.DuplicateGroup) int64 {
	var total int64
	for _, g := range groups {
		total += g.ReclaimableBytes
	}
	return total
}
