// Package stats maintains scan-level aggregates incrementally as the
// walker's stream arrives, so peak memory stays bounded on very large
// trees: running counts, an extension histogram and a fixed-size
// largest-file list.
//
// Every aggregate is associative and commutative, so the result does
// not depend on worker completion order.
package stats

import (
	"container/heap"
	"sort"

	"dirscan/internal/scan"
)

// Aggregator accumulates one scan's statistics. Not safe for
// concurrent use; the registry feeds it from a single consumer.
type Aggregator struct {
	topN       int
	totalFiles int
	totalDirs  int
	totalBytes int64
	maxDepth   int
	skipped    int
	extensions map[string]int
	largest    fileHeap
}

// New creates an Aggregator keeping the topN largest files.
func New(topN int) *Aggregator {
	if topN <= 0 {
		topN = scan.DefaultTopN
	}
	return &Aggregator{
		topN:       topN,
		extensions: make(map[string]int),
	}
}

// AddDir records a discovered directory at the given depth.
func (a *Aggregator) AddDir(depth int) {
	a.totalDirs++
	if depth > a.maxDepth {
		a.maxDepth = depth
	}
}

// AddFile folds one file into the running totals. The largest-file
// list is a min-heap of size topN: a file enters only when it beats
// the current smallest member, giving O(log N) per file.
func (a *Aggregator) AddFile(f *scan.FileEntry) {
	a.totalFiles++
	a.totalBytes += f.Size

	ext := f.Ext
	if ext == "" {
		ext = scan.OtherExtension
	}
	a.extensions[ext]++

	if a.largest.Len() < a.topN {
		heap.Push(&a.largest, f)
		return
	}
	if f.Size > a.largest[0].Size {
		a.largest[0] = f
		heap.Fix(&a.largest, 0)
	}
}

// AddSkip counts a skipped entry so that the overview never silently
// under-reports.
func (a *Aggregator) AddSkip() {
	a.skipped++
}

// Finish materializes the statistics. Largest files are returned in
// descending size order (ties broken by path for determinism).
func (a *Aggregator) Finish() *scan.Statistics {
	largest := make([]*scan.FileEntry, len(a.largest))
	copy(largest, a.largest)
	sort.Slice(largest, func(i, j int) bool {
		if largest[i].Size != largest[j].Size {
			return largest[i].Size > largest[j].Size
		}
		return largest[i].Path < largest[j].Path
	})

	return &scan.Statistics{
		TotalFiles:     a.totalFiles,
		TotalDirs:      a.totalDirs,
		TotalBytes:     a.totalBytes,
		MaxDepth:       a.maxDepth,
		Extensions:     a.extensions,
		LargestFiles:   largest,
		SkippedEntries: a.skipped,
	}
}

// fileHeap is a min-heap by file size.
type fileHeap []*scan.FileEntry

func (h fileHeap) Len() int           { return len(h) }
func (h fileHeap) Less(i, j int) bool { return h[i].Size < h[j].Size }
func (h fileHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *fileHeap) Push(x any)        { *h = append(*h, x.(*scan.FileEntry)) }
func (h *fileHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
