package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dirscan/internal/dupes"
	"dirscan/internal/hashcache"
	"dirscan/internal/hasher"
	"dirscan/internal/scan"
	"dirscan/internal/stats"
	"dirscan/internal/tree"
	"dirscan/internal/walker"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	maxDepth   int
	workers    int
	noHash     bool
	excludes   []string
	topN       int
	cacheFile  string
	noProgress bool
}

// newScanCmd creates the scan subcommand: a one-shot scan with a
// printed report instead of the HTTP service.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{
		workers: runtime.NumCPU(),
		topN:    scan.DefaultTopN,
	}

	cmd := &cobra.Command{
		Use:   "scan PATH",
		Short: "Scan a directory and print a summary report",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Maximum directory depth to traverse (0 for no limit)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel hashing workers")
	cmd.Flags().BoolVar(&opts.noHash, "no-hash", false, "Skip content fingerprinting (disables duplicate detection)")
	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Glob patterns to exclude")
	cmd.Flags().IntVar(&opts.topN, "top-n", opts.topN, "Largest files to report")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to fingerprint cache file (enables caching)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

// runScan drives the pipeline directly: walk, aggregate, group, report.
func runScan(path string, opts *scanOptions) error {
	cache, err := hashcache.Open(opts.cacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := walker.New(hasher.New(0), cache)
	events, err := w.Walk(ctx, path, scan.Options{
		MaxDepth:    opts.maxDepth,
		ComputeHash: !opts.noHash,
		Workers:     opts.workers,
		Excludes:    opts.excludes,
		TopN:        opts.topN,
	})
	if err != nil {
		return err
	}

	bar := newSpinner(!opts.noProgress)
	started := time.Now()

	builder := tree.New()
	agg := stats.New(opts.topN)
	var entries []*scan.FileEntry
	var files int
	var bytes int64

	for ev := range events {
		switch ev.Kind {
		case walker.EventDir:
			builder.AddDir(ev.Dir.Path)
			agg.AddDir(ev.Dir.Depth)
		case walker.EventFile:
			entries = append(entries, ev.File)
			builder.AddFile(ev.File)
			agg.AddFile(ev.File)
			files++
			bytes += ev.File.Size
			describe(bar, files, bytes)
		case walker.EventSkip:
			agg.AddSkip()
			fmt.Fprintf(os.Stderr, "\r\033[Kskipped %s: %s\n", ev.Skip.Path, ev.Skip.Reason)
		}
	}
	_ = bar.Finish()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan canceled: %w", err)
	}

	groups := dupes.Exact{}.Group(entries)
	_, emptyDirs := builder.Finish()

	statistics := agg.Finish()
	statistics.EmptyDirs = emptyDirs
	statistics.DuplicateGroups = len(groups)
	statistics.ReclaimableBytes = dupes.TotalReclaimable(groups)

	printReport(statistics, groups, time.Since(started))
	return nil
}

func printReport(st *scan.Statistics, groups []*scan.DuplicateGroup, elapsed time.Duration) {
	fmt.Printf("scanned %s files in %s directories, %s in %s\n",
		humanize.Comma(int64(st.TotalFiles)), humanize.Comma(int64(st.TotalDirs)),
		humanize.IBytes(uint64(st.TotalBytes)), elapsed.Round(time.Millisecond))

	if st.SkippedEntries > 0 {
		fmt.Printf("skipped %d entries\n", st.SkippedEntries)
	}
	if len(st.EmptyDirs) > 0 {
		fmt.Printf("%d empty directories\n", len(st.EmptyDirs))
	}

	if len(st.Extensions) > 0 {
		fmt.Println("\ntop extensions:")
		for _, ext := range topExtensions(st.Extensions, 5) {
			fmt.Printf("  %-12s %s\n", ext, humanize.Comma(int64(st.Extensions[ext])))
		}
	}

	if len(st.LargestFiles) > 0 {
		fmt.Println("\nlargest files:")
		for _, f := range st.LargestFiles {
			fmt.Printf("  %10s  %s\n", humanize.IBytes(uint64(f.Size)), f.Path)
		}
	}

	if len(groups) > 0 {
		fmt.Printf("\n%d duplicate groups, %s reclaimable\n",
			len(groups), humanize.IBytes(uint64(st.ReclaimableBytes)))
	}
}

// topExtensions returns up to n extensions ordered by file count.
func topExtensions(histogram map[string]int, n int) []string {
	exts := make([]string, 0, len(histogram))
	for ext := range histogram {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if histogram[exts[i]] != histogram[exts[j]] {
			return histogram[exts[i]] > histogram[exts[j]]
		}
		return exts[i] < exts[j]
	})
	if len(exts) > n {
		exts = exts[:n]
	}
	return exts
}

func newSpinner(enabled bool) *progressbar.ProgressBar {
	if !enabled {
		return progressbar.NewOptions(-1, progressbar.OptionSetVisibility(false))
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)
}

func describe(bar *progressbar.ProgressBar, files int, bytes int64) {
	bar.Describe(fmt.Sprintf("scanning: %s files, %s",
		humanize.Comma(int64(files)), humanize.IBytes(uint64(bytes))))
}
