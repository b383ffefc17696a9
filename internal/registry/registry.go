// Package registry owns the scan lifecycle: it allocates scan records,
// launches traversal, fans the walker's stream into the tree builder,
// the statistics aggregator and the duplicate grouper, and answers
// queries keyed by scan id.
//
// A scan moves pending -> running -> {completed | failed}. Terminal
// records are immutable; their three result views (tree, overview,
// duplicates) are consistent projections of one traversal pass. The
// registry is the only process-wide mutable state: each record is
// written solely by the scan that owns it and read-only afterwards, and
// concurrent scans never share worker pools.
package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"dirscan/internal/dupes"
	"dirscan/internal/scan"
	"dirscan/internal/stats"
	"dirscan/internal/storage"
	"dirscan/internal/tree"
	"dirscan/internal/walker"
)

// DefaultMaxScans bounds retained terminal scans when no cap is given.
const DefaultMaxScans = 100

// StatusInfo is the queryable snapshot of a scan's lifecycle state.
type StatusInfo struct {
	ID          string      `json:"scanId"`
	Path        string      `json:"path"`
	Status      scan.Status `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// GlobalStats aggregates across all completed scans.
type GlobalStats struct {
	TotalScans     int   `json:"totalScans"`
	CompletedScans int   `json:"completedScans"`
	RunningScans   int   `json:"runningScans"`
	TotalFiles     int   `json:"totalFiles"`
	TotalBytes     int64 `json:"totalBytes"`
}

// record is the registry-owned state for one scan.
type record struct {
	id          string
	path        string
	status      scan.Status
	createdAt   time.Time
	completedAt time.Time
	errDetail   string
	options     scan.Options

	// Frozen result views; populated only on completion.
	tree       *scan.DirectoryEntry
	statistics *scan.Statistics
	duplicates []*scan.DuplicateGroup
	skipped    []*scan.SkippedEntry

	cancel context.CancelFunc
}

// Config assembles a Registry's collaborators.
type Config struct {
	Walker   *walker.Walker
	Store    storage.ScanStore
	Grouper  dupes.Strategy
	MaxScans int
}

// Registry orchestrates scans. Construct with New; not a singleton.
type Registry struct {
	walker   *walker.Walker
	store    storage.ScanStore
	grouper  dupes.Strategy
	maxScans int

	mu    sync.RWMutex
	scans map[string]*record
	order []string // creation order, for retention
}

// New constructs a Registry. Store may be nil for a purely in-memory
// lifetime; Grouper defaults to the exact-fingerprint strategy.
func New(cfg Config) *Registry {
	if cfg.Walker == nil {
		cfg.Walker = walker.New(nil, nil)
	}
	if cfg.Grouper == nil {
		cfg.Grouper = dupes.Exact{}
	}
	if cfg.MaxScans <= 0 {
		cfg.MaxScans = DefaultMaxScans
	}
	return &Registry{
		walker:   cfg.Walker,
		store:    cfg.Store,
		grouper:  cfg.Grouper,
		maxScans: cfg.MaxScans,
		scans:    make(map[string]*record),
	}
}

// Restore loads persisted records into the registry. Scans persisted
// in a non-terminal state were interrupted by a previous shutdown and
// are marked failed. Returns the number of restored records.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}

	persisted, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range persisted {
		rec := &record{
			id:          p.ID,
			path:        p.Path,
			status:      p.Status,
			createdAt:   p.CreatedAt,
			completedAt: p.CompletedAt,
			errDetail:   p.Error,
			options:     p.Options,
			tree:        p.Tree,
			statistics:  p.Statistics,
			duplicates:  p.Duplicates,
			skipped:     p.Skipped,
		}
		if !rec.status.Terminal() {
			rec.status = scan.StatusFailed
			rec.errDetail = "interrupted by shutdown"
		}
		r.scans[rec.id] = rec
		r.order = append(r.order, rec.id)
	}
	return len(persisted), nil
}

// StartScan validates the root path, allocates a scan record and
// launches traversal in the background. The returned id can be polled
// immediately. An invalid root never allocates a record.
func (r *Registry) StartScan(ctx context.Context, path string, opts scan.Options) (string, error) {
	resolved, err := walker.Resolve(path)
	if err != nil {
		return "", err
	}
	opts = opts.Normalize()

	rec := &record{
		id:        uuid.NewString(),
		path:      resolved,
		status:    scan.StatusPending,
		createdAt: time.Now(),
		options:   opts,
	}

	scanCtx, cancel := context.WithCancel(ctx)
	rec.cancel = cancel

	r.mu.Lock()
	r.scans[rec.id] = rec
	r.order = append(r.order, rec.id)
	r.mu.Unlock()
	r.persist(rec.id)

	go r.runScan(scanCtx, rec.id, resolved, opts)
	return rec.id, nil
}

// runScan drives one traversal and freezes the result views.
func (r *Registry) runScan(ctx context.Context, id, root string, opts scan.Options) {
	r.transition(id, scan.StatusRunning, "")

	events, err := r.walker.Walk(ctx, root, opts)
	if err != nil {
		r.fail(id, err)
		return
	}

	builder := tree.New()
	agg := stats.New(opts.TopN)
	var entries []*scan.FileEntry
	var skipped []*scan.SkippedEntry

	for ev := range events {
		switch ev.Kind {
		case walker.EventDir:
			builder.AddDir(ev.Dir.Path)
			agg.AddDir(ev.Dir.Depth)
		case walker.EventFile:
			entries = append(entries, ev.File)
			builder.AddFile(ev.File)
			agg.AddFile(ev.File)
		case walker.EventSkip:
			skipped = append(skipped, ev.Skip)
			agg.AddSkip()
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.fail(id, fmt.Errorf("scan canceled: %w", ctxErr))
		return
	}

	groups := r.grouper.Group(entries)
	treeRoot, emptyDirs := builder.Finish()

	statistics := agg.Finish()
	statistics.EmptyDirs = emptyDirs
	statistics.DuplicateGroups = len(groups)
	statistics.ReclaimableBytes = dupes.TotalReclaimable(groups)

	r.mu.Lock()
	rec, ok := r.scans[id]
	if ok {
		rec.tree = treeRoot
		rec.statistics = statistics
		rec.duplicates = groups
		rec.skipped = skipped
		rec.status = scan.StatusCompleted
		rec.completedAt = time.Now()
		rec.releaseCancel()
	}
	r.mu.Unlock()

	r.persist(id)
	r.evict()
}

func (r *Registry) fail(id string, err error) {
	r.mu.Lock()
	rec, ok := r.scans[id]
	if ok && !rec.status.Terminal() {
		rec.status = scan.StatusFailed
		rec.errDetail = err.Error()
		rec.completedAt = time.Now()
		rec.releaseCancel()
	}
	r.mu.Unlock()

	r.persist(id)
	r.evict()
}

func (r *Registry) transition(id string, status scan.Status, detail string) {
	r.mu.Lock()
	rec, ok := r.scans[id]
	if ok && !rec.status.Terminal() {
		rec.status = status
		rec.errDetail = detail
	}
	r.mu.Unlock()
	r.persist(id)
}

// persist mirrors a record into the store. Persistence failures are
// logged, never fatal to the scan.
func (r *Registry) persist(id string) {
	if r.store == nil {
		return
	}

	r.mu.RLock()
	rec, ok := r.scans[id]
	var snapshot storage.Record
	if ok {
		snapshot = storage.Record{
			ID:          rec.id,
			Path:        rec.path,
			Status:      rec.status,
			CreatedAt:   rec.createdAt,
			CompletedAt: rec.completedAt,
			Error:       rec.errDetail,
			Options:     rec.options,
			Tree:        rec.tree,
			Statistics:  rec.statistics,
			Duplicates:  rec.duplicates,
			Skipped:     rec.skipped,
		}
	}
	r.mu.RUnlock()
	if !ok {
		return
	}

	if err := r.store.Put(context.Background(), &snapshot); err != nil {
		log.Printf("persist scan %s: %v", id, err)
	}
}

// evict drops the oldest terminal records beyond the retention cap.
// Running scans are never evicted.
func (r *Registry) evict() {
	var evicted []string

	r.mu.Lock()
	terminal := 0
	for _, id := range r.order {
		if rec, ok := r.scans[id]; ok && rec.status.Terminal() {
			terminal++
		}
	}
	if over := terminal - r.maxScans; over > 0 {
		kept := r.order[:0]
		for _, id := range r.order {
			rec, ok := r.scans[id]
			if !ok {
				continue
			}
			if over > 0 && rec.status.Terminal() {
				delete(r.scans, id)
				evicted = append(evicted, id)
				over--
				continue
			}
			kept = append(kept, id)
		}
		r.order = kept
	}
	r.mu.Unlock()

	if r.store != nil {
		for _, id := range evicted {
			if err := r.store.Delete(context.Background(), id); err != nil {
				log.Printf("evict scan %s: %v", id, err)
			}
		}
	}
}

// Status returns the lifecycle snapshot for a scan id.
func (r *Registry) Status(id string) (StatusInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.scans[id]
	if !ok {
		return StatusInfo{}, fmt.Errorf("%w: %s", scan.ErrUnknownScan, id)
	}
	return rec.snapshot(), nil
}

// List returns snapshots for all known scans in creation order.
func (r *Registry) List() []StatusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]StatusInfo, 0, len(r.order))
	for _, id := range r.order {
		if rec, ok := r.scans[id]; ok {
			infos = append(infos, rec.snapshot())
		}
	}
	return infos
}

// Tree returns the completed scan's directory tree.
func (r *Registry) Tree(id string) (*scan.DirectoryEntry, error) {
	rec, err := r.completed(id)
	if err != nil {
		return nil, err
	}
	return rec.tree, nil
}

// Overview returns the completed scan's statistics.
func (r *Registry) Overview(id string) (*scan.Statistics, error) {
	rec, err := r.completed(id)
	if err != nil {
		return nil, err
	}
	return rec.statistics, nil
}

// Duplicates returns the completed scan's duplicate groups.
func (r *Registry) Duplicates(id string) ([]*scan.DuplicateGroup, error) {
	rec, err := r.completed(id)
	if err != nil {
		return nil, err
	}
	return rec.duplicates, nil
}

// Skipped returns the completed scan's skipped-entry diagnostics.
func (r *Registry) Skipped(id string) ([]*scan.SkippedEntry, error) {
	rec, err := r.completed(id)
	if err != nil {
		return nil, err
	}
	return rec.skipped, nil
}

// completed resolves an id and gates on the completed state. Failed
// scans surface their error detail; pending/running scans surface the
// current status. No partial results are ever exposed.
func (r *Registry) completed(id string) (*record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.scans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scan.ErrUnknownScan, id)
	}
	switch rec.status {
	case scan.StatusCompleted:
		return rec, nil
	case scan.StatusFailed:
		return nil, fmt.Errorf("%w: scan failed: %s", scan.ErrNotCompleted, rec.errDetail)
	default:
		return nil, fmt.Errorf("%w: scan is %s", scan.ErrNotCompleted, rec.status)
	}
}

// Cancel requests cooperative cancellation of an in-flight scan. The
// walker observes it at the next directory or file boundary and the
// scan lands in the failed state with a cancellation detail. Terminal
// scans are left untouched.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.scans[id]
	if !ok {
		return fmt.Errorf("%w: %s", scan.ErrUnknownScan, id)
	}
	rec.releaseCancel()
	return nil
}

// Delete evicts a scan from the registry and the store.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	rec, ok := r.scans[id]
	if ok {
		rec.releaseCancel()
		delete(r.scans, id)
		kept := r.order[:0]
		for _, oid := range r.order {
			if oid != id {
				kept = append(kept, oid)
			}
		}
		r.order = kept
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", scan.ErrUnknownScan, id)
	}
	if r.store != nil {
		return r.store.Delete(context.Background(), id)
	}
	return nil
}

// Global aggregates statistics across completed scans.
func (r *Registry) Global() GlobalStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var g GlobalStats
	g.TotalScans = len(r.scans)
	for _, rec := range r.scans {
		switch rec.status {
		case scan.StatusCompleted:
			g.CompletedScans++
			if rec.statistics != nil {
				g.TotalFiles += rec.statistics.TotalFiles
				g.TotalBytes += rec.statistics.TotalBytes
			}
		case scan.StatusRunning, scan.StatusPending:
			g.RunningScans++
		}
	}
	return g
}

// Close cancels all in-flight scans.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.scans {
		rec.releaseCancel()
	}
}

// releaseCancel cancels the scan's child context and drops the func.
// A terminal scan no longer needs its context, and leaving the child
// registered on the server's base context would accumulate over the
// process lifetime. Callers hold r.mu.
func (rec *record) releaseCancel() {
	if rec.cancel != nil {
		rec.cancel()
		rec.cancel = nil
	}
}

func (rec *record) snapshot() StatusInfo {
	info := StatusInfo{
		ID:        rec.id,
		Path:      rec.path,
		Status:    rec.status,
		CreatedAt: rec.createdAt,
		Error:     rec.errDetail,
	}
	if !rec.completedAt.IsZero() {
		completed := rec.completedAt
		info.CompletedAt = &completed
	}
	return info
}

// WaitTerminal blocks until the scan reaches a terminal state or the
// context expires. Polling keeps the registry free of per-record
// condition variables; callers are tests and the CLI.
func (r *Registry) WaitTerminal(ctx context.Context, id string) (StatusInfo, error) {
	for {
		info, err := r.Status(id)
		if err != nil {
			return StatusInfo{}, err
		}
		if info.Status.Terminal() {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
