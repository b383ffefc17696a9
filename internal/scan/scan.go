// Package scan defines the domain model shared by the scan engine:
// file and directory entries, duplicate groups, aggregate statistics,
// scan options and lifecycle status.
package scan

import (
	"errors"
	"runtime"
	"time"
)

// Status describes where a scan is in its lifecycle.
// Transitions: pending -> running -> {completed | failed}.
// Terminal states are immutable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Domain error kinds surfaced across the engine boundary.
var (
	// ErrInvalidPath marks a root path that does not exist, is not a
	// directory, or is not readable. Fatal: the scan never starts.
	ErrInvalidPath = errors.New("invalid path")

	// ErrUnknownScan marks a query for an id that was never issued or
	// has been evicted.
	ErrUnknownScan = errors.New("unknown scan")

	// ErrNotCompleted marks a result query against a scan that has not
	// reached the completed state. Callers should report the current
	// status (or the failure detail) instead of partial data.
	ErrNotCompleted = errors.New("scan not completed")
)

// OtherExtension buckets files without an extension in the histogram.
const OtherExtension = "other"

// FileEntry is the metadata captured for a single regular file.
// Produced once by the walker and never mutated afterwards.
type FileEntry struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"modified"`
	Ext         string    `json:"ext"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// DirectoryEntry is a node in the reconstructed filesystem tree.
// Children are exclusively owned by their parent; the structure is a
// strict tree even when the underlying filesystem contains symlink
// cycles.
type DirectoryEntry struct {
	Path      string            `json:"path"`
	Name      string            `json:"name"`
	TotalSize int64             `json:"totalSize"`
	Files     []*FileEntry      `json:"files"`
	Subdirs   []*DirectoryEntry `json:"subdirs"`
}

// DuplicateGroup collects files sharing identical size and fingerprint.
// ReclaimableBytes assumes one copy is always kept; that is a policy
// choice, not a detected fact.
type DuplicateGroup struct {
	Fingerprint      string   `json:"fingerprint"`
	SizeBytes        int64    `json:"sizeBytes"`
	Count            int      `json:"count"`
	Paths            []string `json:"paths"`
	ReclaimableBytes int64    `json:"reclaimableBytes"`
}

// SkipReason classifies why an entry could not be processed.
type SkipReason string

const (
	SkipPermission   SkipReason = "permission"
	SkipStat         SkipReason = "stat"
	SkipHash         SkipReason = "hash"
	SkipSymlinkCycle SkipReason = "symlink-cycle"
)

// SkippedEntry records a file or directory that was skipped without
// aborting the scan.
type SkippedEntry struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Error  string     `json:"error,omitempty"`
}

// Statistics is the aggregate view over one traversal pass.
type Statistics struct {
	TotalFiles       int            `json:"totalFiles"`
	TotalDirs        int            `json:"totalDirs"`
	TotalBytes       int64          `json:"totalBytes"`
	MaxDepth         int            `json:"maxDepth"`
	Extensions       map[string]int `json:"extensions"`
	LargestFiles     []*FileEntry   `json:"largestFiles"`
	EmptyDirs        []string       `json:"emptyDirs"`
	SkippedEntries   int            `json:"skippedEntries"`
	DuplicateGroups  int            `json:"duplicateGroups"`
	ReclaimableBytes int64          `json:"reclaimableBytes"`
}

// DefaultTopN bounds the largest-file list when Options.TopN is unset.
const DefaultTopN = 10

// Options control a single scan.
type Options struct {
	// MaxDepth bounds recursion below the root; 0 means unbounded.
	// The root itself is depth 0.
	MaxDepth int `json:"maxDepth,omitempty"`

	// ComputeHash enables content fingerprinting. Scans that only need
	// analytics can disable it to skip all content I/O.
	ComputeHash bool `json:"computeHash"`

	// Workers bounds the parallel file-processing fan-out.
	Workers int `json:"workers,omitempty"`

	// Excludes are glob patterns matched against entry base names.
	Excludes []string `json:"excludes,omitempty"`

	// TopN bounds the largest-file list.
	TopN int `json:"topN,omitempty"`
}

// DefaultOptions returns the options used when a caller supplies none.
func DefaultOptions() Options {
	return Options{
		ComputeHash: true,
		Workers:     runtime.NumCPU(),
		TopN:        DefaultTopN,
	}
}

// Normalize fills zero values with defaults.
func (o Options) Normalize() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	return o
}
