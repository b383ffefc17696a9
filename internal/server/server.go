// Package server exposes the scan registry over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"dirscan/internal/registry"
	"dirscan/internal/scan"
	"dirscan/internal/transform"
)

// Server wires together HTTP handlers for the scan API.
type Server struct {
	reg      *registry.Registry
	defaults scan.Options
	baseCtx  context.Context
}

// New creates a Server backed by the provided registry. defaults are
// the configured per-scan options; request payloads override them
// field by field.
func New(reg *registry.Registry, defaults scan.Options) *Server {
	return &Server{reg: reg, defaults: defaults.Normalize(), baseCtx: context.Background()}
}

// Routes returns the HTTP handler that exposes the application endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scans", s.handleStartScan)
	mux.HandleFunc("GET /api/scans", s.handleListScans)
	mux.HandleFunc("GET /api/scans/{id}", s.handleScanStatus)
	mux.HandleFunc("GET /api/scans/{id}/tree", s.handleScanTree)
	mux.HandleFunc("GET /api/scans/{id}/overview", s.handleScanOverview)
	mux.HandleFunc("GET /api/scans/{id}/duplicates", s.handleScanDuplicates)
	mux.HandleFunc("GET /api/scans/{id}/skipped", s.handleScanSkipped)
	mux.HandleFunc("POST /api/scans/{id}/cancel", s.handleCancelScan)
	mux.HandleFunc("DELETE /api/scans/{id}", s.handleDeleteScan)
	mux.HandleFunc("POST /api/files/delete", s.handleDeleteFiles)
	mux.HandleFunc("POST /api/files/move", s.handleMoveFiles)
	mux.HandleFunc("POST /api/files/copy", s.handleCopyFiles)
	mux.HandleFunc("GET /api/stats", s.handleGlobalStats)
	return mux
}

// Start runs the HTTP server until the provided context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.baseCtx = ctx

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path        string   `json:"path"`
		ComputeHash *bool    `json:"computeHash"`
		MaxDepth    int      `json:"maxDepth"`
		Workers     int      `json:"workers"`
		Excludes    []string `json:"excludes"`
		TopN        int      `json:"topN"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}

	opts := s.defaults
	if payload.ComputeHash != nil {
		opts.ComputeHash = *payload.ComputeHash
	}
	if payload.MaxDepth > 0 {
		opts.MaxDepth = payload.MaxDepth
	}
	if payload.Workers > 0 {
		opts.Workers = payload.Workers
	}
	if payload.TopN > 0 {
		opts.TopN = payload.TopN
	}
	if payload.Excludes != nil {
		opts.Excludes = payload.Excludes
	}

	// Scans outlive the request; they run under the server's context.
	id, err := s.reg.StartScan(s.baseCtx, payload.Path, opts)
	if err != nil {
		if errors.Is(err, scan.ErrInvalidPath) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("start scan: %v", err), http.StatusInternalServerError)
		return
	}

	info, err := s.reg.Status(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("start scan: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(info)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"scans": s.reg.List()})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.reg.Status(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleScanTree(w http.ResponseWriter, r *http.Request) {
	root, err := s.reg.Tree(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"tree": root})
}

func (s *Server) handleScanOverview(w http.ResponseWriter, r *http.Request) {
	statistics, err := s.reg.Overview(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, statistics)
}

func (s *Server) handleScanDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.reg.Duplicates(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"groups": groups})
}

func (s *Server) handleScanSkipped(w http.ResponseWriter, r *http.Request) {
	skipped, err := s.reg.Skipped(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if skipped == nil {
		skipped = []*scan.SkippedEntry{}
	}
	writeJSON(w, map[string]any{"skipped": skipped})
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.reg.Cancel(id); err != nil {
		s.writeError(w, err)
		return
	}
	info, err := s.reg.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteFiles(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Paths  []string `json:"paths"`
		DryRun bool     `json:"dryRun"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if len(payload.Paths) == 0 {
		http.Error(w, "missing paths", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"results": transform.DeleteFiles(payload.Paths, payload.DryRun)})
}

func (s *Server) handleMoveFiles(w http.ResponseWriter, r *http.Request) {
	moves, dryRun, err := decodeMoves(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"results": transform.MoveFiles(moves, dryRun)})
}

func (s *Server) handleCopyFiles(w http.ResponseWriter, r *http.Request) {
	moves, dryRun, err := decodeMoves(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"results": transform.CopyFiles(moves, dryRun)})
}

func (s *Server) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.reg.Global())
}

// writeError maps registry errors onto HTTP status codes. A scan that
// exists but has not completed yet answers 409 with its current state
// so pollers can tell "not yet" from "never".
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scan.ErrUnknownScan):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, scan.ErrNotCompleted):
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeMoves(r *http.Request) ([]transform.Move, bool, error) {
	var payload struct {
		Files  []transform.Move `json:"files"`
		DryRun bool             `json:"dryRun"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return nil, false, fmt.Errorf("invalid payload: %w", err)
	}
	if len(payload.Files) == 0 {
		return nil, false, errors.New("missing files")
	}
	return payload.Files, payload.DryRun, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
	}
}
