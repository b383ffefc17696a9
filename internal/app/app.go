package app

import (
	"context"
	"fmt"
	"log"

	"dirscan/internal/config"
	"dirscan/internal/hashcache"
	"dirscan/internal/hasher"
	"dirscan/internal/registry"
	"dirscan/internal/server"
	"dirscan/internal/storage"
	"dirscan/internal/storage/memory"
	"dirscan/internal/storage/sqlite"
	"dirscan/internal/walker"
)

// App ties together configuration, the scan registry, and the HTTP server.
type App struct {
	cfg      config.Config
	store    storage.ScanStore
	cache    *hashcache.Cache
	registry *registry.Registry
	server   *server.Server
}

// New constructs an App using the provided configuration.
func New(cfg config.Config) (*App, error) {
	var store storage.ScanStore
	var err error
	if cfg.DBPath != "" {
		store, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open scan store: %w", err)
		}
	} else {
		store = memory.New()
	}

	cache, err := hashcache.Open(cfg.CacheFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open fingerprint cache: %w", err)
	}

	reg := registry.New(registry.Config{
		Walker:   walker.New(hasher.New(0), cache),
		Store:    store,
		MaxScans: cfg.MaxScans,
	})

	return &App{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		registry: reg,
		server:   server.New(reg, cfg.Options()),
	}, nil
}

// Run restores persisted scans and serves HTTP until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	restored, err := a.registry.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore scans: %w", err)
	}
	if restored > 0 {
		log.Printf("restored %d persisted scans", restored)
	}

	log.Printf("starting server on %s", a.cfg.ListenAddr)
	if err := a.server.Start(ctx, a.cfg.ListenAddr); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	return nil
}

// Registry exposes the underlying registry instance for the CLI.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close cancels in-flight scans and releases the cache and store.
func (a *App) Close() {
	a.registry.Close()
	if err := a.cache.Close(); err != nil {
		log.Printf("close fingerprint cache: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("close scan store: %v", err)
	}
}
