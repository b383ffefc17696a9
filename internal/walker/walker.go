// Package walker traverses a directory tree, extracting per-file
// metadata and content fingerprints.
//
// Directory discovery is single-threaded depth-first over sorted
// directory listings, so the emitted directory stream is deterministic
// for a fixed filesystem snapshot. File metadata and hashing are the
// only slow, I/O-bound operations; they are fanned out to a bounded
// worker pool fed through a bounded queue, so discovery never blocks on
// hashing and memory stays bounded when I/O is slower than discovery.
//
// Per-entry failures (permission denied, stat races, files vanishing
// mid-hash) become skip events and traversal continues. Only a failure
// on the root path itself is fatal, and it is reported before any work
// begins.
package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dirscan/internal/hashcache"
	"dirscan/internal/hasher"
	"dirscan/internal/scan"
)

// jobQueueSize bounds the discovery-to-worker queue.
const jobQueueSize = 1024

// eventBufferSize smooths producer/consumer rate differences on the
// outbound event stream.
const eventBufferSize = 256

// EventKind discriminates walker events.
type EventKind int

const (
	// EventDir announces a directory. A directory event is always
	// delivered before any event for its children.
	EventDir EventKind = iota
	// EventFile delivers a fully processed file entry.
	EventFile
	// EventSkip records an entry that could not be processed.
	EventSkip
)

// DirInfo describes a discovered directory.
type DirInfo struct {
	Path   string
	Parent string // empty for the root
	Depth  int    // root is 0
}

// Event is one element of the walk output stream.
type Event struct {
	Kind EventKind
	Dir  *DirInfo
	File *scan.FileEntry
	Skip *scan.SkippedEntry
}

// Walker produces walk streams. Safe for concurrent use; each Walk call
// owns its goroutines and channels.
type Walker struct {
	hasher *hasher.Hasher
	cache  *hashcache.Cache
}

// New creates a Walker. cache may be nil to disable fingerprint caching.
func New(h *hasher.Hasher, cache *hashcache.Cache) *Walker {
	if h == nil {
		h = hasher.New(0)
	}
	return &Walker{hasher: h, cache: cache}
}

// Resolve validates and canonicalizes a scan root. It expands a leading
// "~", makes the path absolute, and verifies it names a readable
// directory. All failures wrap scan.ErrInvalidPath.
func Resolve(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty path", scan.ErrInvalidPath)
	}

	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: resolve home directory: %v", scan.ErrInvalidPath, err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", scan.ErrInvalidPath, err)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", scan.ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: not a directory: %s", scan.ErrInvalidPath, abs)
	}

	// Readability check: listing is what traversal needs.
	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", scan.ErrInvalidPath, err)
	}
	_ = f.Close()

	return abs, nil
}

// fileJob is one unit of worker-pool work.
type fileJob struct {
	path string
	info os.FileInfo
}

// run carries the per-walk state.
type run struct {
	w    *Walker
	ctx  context.Context
	opts scan.Options

	events chan Event
	jobs   chan fileJob

	mu      sync.Mutex
	visited map[fileID]struct{}
}

// Walk validates root and starts traversal. The fatal root-path check
// happens synchronously; after a nil error the returned channel is
// closed once traversal finishes or the context is cancelled.
func (w *Walker) Walk(ctx context.Context, root string, opts scan.Options) (<-chan Event, error) {
	resolved, err := Resolve(root)
	if err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	r := &run{
		w:       w,
		ctx:     ctx,
		opts:    opts,
		events:  make(chan Event, eventBufferSize),
		jobs:    make(chan fileJob, jobQueueSize),
		visited: make(map[fileID]struct{}),
	}

	go r.walk(resolved)
	return r.events, nil
}

func (r *run) walk(root string) {
	defer close(r.events)

	var workerWg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for job := range r.jobs {
				if r.ctx.Err() != nil {
					continue // drain without processing
				}
				r.processFile(job)
			}
		}()
	}

	r.emitDir(&DirInfo{Path: root, Depth: 0})
	if info, err := os.Stat(root); err == nil {
		r.markVisited(identityOf(root, info))
	}
	r.walkDir(root, 0)

	close(r.jobs)
	workerWg.Wait()
}

// walkDir lists one directory and recurses into subdirectories.
// Discovery stays on this single goroutine so the directory stream is
// deterministic; files are handed to the worker pool.
func (r *run) walkDir(dir string, depth int) {
	if r.ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		r.emitSkip(dir, skipReasonFor(err), err)
		return
	}

	for _, entry := range entries {
		if r.ctx.Err() != nil {
			return
		}
		if r.excluded(entry.Name()) {
			continue
		}

		full := filepath.Join(dir, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			r.handleSymlink(full, depth)
		case entry.IsDir():
			r.handleDir(full, entry, depth)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				r.emitSkip(full, skipReasonFor(err), err)
				continue
			}
			r.markVisited(identityOf(full, info))
			r.jobs <- fileJob{path: full, info: info}
		default:
			// Devices, sockets, pipes: not part of the scan.
		}
	}
}

func (r *run) handleDir(full string, entry os.DirEntry, depth int) {
	if r.opts.MaxDepth > 0 && depth+1 > r.opts.MaxDepth {
		return
	}

	info, err := entry.Info()
	if err != nil {
		r.emitSkip(full, skipReasonFor(err), err)
		return
	}
	r.markVisited(identityOf(full, info))

	r.emitDir(&DirInfo{Path: full, Parent: filepath.Dir(full), Depth: depth + 1})
	r.walkDir(full, depth+1)
}

// handleSymlink resolves a symlink exactly once. If the canonical
// target was already visited the entry is recorded as skipped instead
// of followed, which is what keeps symlink cycles from recursing
// forever or double-counting files.
func (r *run) handleSymlink(full string, depth int) {
	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		r.emitSkip(full, skipReasonFor(err), err)
		return
	}
	info, err := os.Stat(target)
	if err != nil {
		r.emitSkip(full, skipReasonFor(err), err)
		return
	}

	id := identityOf(target, info)
	if r.alreadyVisited(id) {
		r.emitSkip(full, scan.SkipSymlinkCycle, fmt.Errorf("target already visited: %s", target))
		return
	}

	if info.IsDir() {
		// Prune before marking: a depth-pruned target was never walked,
		// so a later in-depth link to it must still be followed.
		if r.opts.MaxDepth > 0 && depth+1 > r.opts.MaxDepth {
			return
		}
		r.markVisited(id)
		// Keep tree paths under the scan root by walking through the
		// link path rather than the resolved target.
		r.emitDir(&DirInfo{Path: full, Parent: filepath.Dir(full), Depth: depth + 1})
		r.walkDir(full, depth+1)
		return
	}
	if info.Mode().IsRegular() {
		r.markVisited(id)
		r.jobs <- fileJob{path: full, info: info}
	}
}

// processFile runs on a worker goroutine: metadata is already captured,
// hashing is the expensive part.
func (r *run) processFile(job fileJob) {
	entry := &scan.FileEntry{
		Path:    job.path,
		Size:    job.info.Size(),
		ModTime: job.info.ModTime(),
		Ext:     extensionOf(job.path),
	}

	if r.opts.ComputeHash {
		fingerprint, err := r.fingerprint(job)
		if err != nil {
			r.emitSkip(job.path, scan.SkipHash, err)
			return
		}
		entry.Fingerprint = fingerprint
	}

	r.events <- Event{Kind: EventFile, File: entry}
}

func (r *run) fingerprint(job fileJob) (string, error) {
	if r.w.cache != nil {
		if sum := r.w.cache.Lookup(job.path, job.info.Size(), job.info.ModTime()); sum != nil {
			return fmt.Sprintf("%x", sum), nil
		}
	}

	sum, err := r.w.hasher.Sum(job.path)
	if err != nil {
		return "", err
	}

	if r.w.cache != nil {
		_ = r.w.cache.Store(job.path, job.info.Size(), job.info.ModTime(), sum)
	}
	return fmt.Sprintf("%x", sum), nil
}

func (r *run) excluded(name string) bool {
	for _, pattern := range r.opts.Excludes {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func (r *run) emitDir(d *DirInfo) {
	r.events <- Event{Kind: EventDir, Dir: d}
}

func (r *run) emitSkip(path string, reason scan.SkipReason, err error) {
	skip := &scan.SkippedEntry{Path: path, Reason: reason}
	if err != nil {
		skip.Error = err.Error()
	}
	r.events <- Event{Kind: EventSkip, Skip: skip}
}

func (r *run) markVisited(id fileID) {
	r.mu.Lock()
	r.visited[id] = struct{}{}
	r.mu.Unlock()
}

func (r *run) alreadyVisited(id fileID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.visited[id]
	return ok
}

func skipReasonFor(err error) scan.SkipReason {
	if os.IsPermission(err) {
		return scan.SkipPermission
	}
	return scan.SkipStat
}

// extensionOf returns the lowercased extension without the leading dot.
// Files without an extension return "".
func extensionOf(path string) string {
	ext := filepath.Ext(filepath.Base(path))
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
