// Package transform performs one-shot file operations requested over
// the API: deleting, moving and copying individual files. Operations
// are per-path best-effort; one failure never aborts the batch, the
// caller gets a result per path instead.
package transform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Result reports the outcome of one file operation.
type Result struct {
	Path    string `json:"path"`
	Dest    string `json:"dest,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	DryRun  bool   `json:"dryRun,omitempty"`
	Freed   int64  `json:"freedBytes,omitempty"`
	Written int64  `json:"writtenBytes,omitempty"`
}

// DeleteFiles removes the given regular files. Directories are
// rejected per-path; a dry run only checks that each path is a
// deletable regular file and reports the bytes that would be freed.
func DeleteFiles(paths []string, dryRun bool) []Result {
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		res := Result{Path: p, DryRun: dryRun}

		info, err := os.Lstat(p)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if info.IsDir() {
			res.Error = fmt.Sprintf("refusing to delete directory %s", p)
			results = append(results, res)
			continue
		}

		if !dryRun {
			if err := os.Remove(p); err != nil {
				res.Error = err.Error()
				results = append(results, res)
				continue
			}
		}
		res.OK = true
		res.Freed = info.Size()
		results = append(results, res)
	}
	return results
}

// Move describes one source-to-destination file operation.
type Move struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
}

// MoveFiles renames each source to its destination, creating parent
// directories as needed. Existing destinations are never overwritten.
// Falls back to copy-then-remove when rename crosses a device.
func MoveFiles(moves []Move, dryRun bool) []Result {
	results := make([]Result, 0, len(moves))
	for _, m := range moves {
		res := Result{Path: m.Src, Dest: m.Dest, DryRun: dryRun}

		if err := checkMove(m); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if dryRun {
			res.OK = true
			results = append(results, res)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(m.Dest), 0o755); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if err := os.Rename(m.Src, m.Dest); err != nil {
			// EXDEV and friends: copy across, then remove.
			n, cerr := copyFile(m.Src, m.Dest)
			if cerr != nil {
				res.Error = err.Error()
				results = append(results, res)
				continue
			}
			if rerr := os.Remove(m.Src); rerr != nil {
				res.Error = rerr.Error()
				results = append(results, res)
				continue
			}
			res.Written = n
		}
		res.OK = true
		results = append(results, res)
	}
	return results
}

// CopyFiles copies each source to its destination, creating parent
// directories as needed. Existing destinations are never overwritten.
func CopyFiles(moves []Move, dryRun bool) []Result {
	results := make([]Result, 0, len(moves))
	for _, m := range moves {
		res := Result{Path: m.Src, Dest: m.Dest, DryRun: dryRun}

		if err := checkMove(m); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if dryRun {
			res.OK = true
			results = append(results, res)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(m.Dest), 0o755); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		n, err := copyFile(m.Src, m.Dest)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.OK = true
		res.Written = n
		results = append(results, res)
	}
	return results
}

// checkMove validates a source/destination pair without touching the
// destination's parent directory.
func checkMove(m Move) error {
	if m.Src == "" || m.Dest == "" {
		return fmt.Errorf("src and dest are required")
	}
	info, err := os.Lstat(m.Src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("refusing to operate on directory %s", m.Src)
	}
	if _, err := os.Lstat(m.Dest); err == nil {
		return fmt.Errorf("destination %s already exists", m.Dest)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	return n, nil
}
