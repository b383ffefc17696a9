// Package config resolves runtime configuration from flags and the
// environment. Precedence is flags over environment over defaults;
// environment variables use the DIRSCAN_ prefix (DIRSCAN_LISTEN,
// DIRSCAN_DB_PATH, ...).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dirscan/internal/scan"
)

// Config captures runtime configuration for the dirscan service.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// DBPath is the sqlite file scans are persisted to. Empty keeps
	// all records in memory only.
	DBPath string

	// CacheFile is the bbolt fingerprint cache. Empty disables caching.
	CacheFile string

	// Workers bounds the hashing worker pool per scan. Zero means one
	// worker per CPU.
	Workers int

	// TopN bounds the largest-files list in scan statistics.
	TopN int

	// MaxScans caps retained terminal scan records.
	MaxScans int

	// Excludes are glob patterns matched against entry base names.
	Excludes []string
}

// BindFlags registers the service flags and binds them to viper keys.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("db-path", "", "sqlite file for persisting scans (empty for in-memory)")
	flags.String("cache-file", "", "bbolt fingerprint cache file (empty to disable)")
	flags.Int("workers", 0, "hashing workers per scan (0 for one per CPU)")
	flags.Int("top-n", scan.DefaultTopN, "largest files tracked per scan")
	flags.Int("max-scans", 100, "terminal scan records to retain")
	flags.StringSlice("exclude", nil, "glob patterns to exclude (repeatable)")

	viper.BindPFlag("listen", flags.Lookup("listen"))
	viper.BindPFlag("db_path", flags.Lookup("db-path"))
	viper.BindPFlag("cache_file", flags.Lookup("cache-file"))
	viper.BindPFlag("workers", flags.Lookup("workers"))
	viper.BindPFlag("top_n", flags.Lookup("top-n"))
	viper.BindPFlag("max_scans", flags.Lookup("max-scans"))
	viper.BindPFlag("excludes", flags.Lookup("exclude"))

	viper.SetEnvPrefix("DIRSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Load materializes the configuration after flags are parsed.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: viper.GetString("listen"),
		DBPath:     viper.GetString("db_path"),
		CacheFile:  viper.GetString("cache_file"),
		Workers:    viper.GetInt("workers"),
		TopN:       viper.GetInt("top_n"),
		MaxScans:   viper.GetInt("max_scans"),
		Excludes:   viper.GetStringSlice("excludes"),
	}

	if cfg.DBPath != "" {
		abs, err := filepath.Abs(cfg.DBPath)
		if err != nil {
			return Config{}, fmt.Errorf("resolve db path %q: %w", cfg.DBPath, err)
		}
		cfg.DBPath = abs
	}
	if cfg.CacheFile != "" {
		abs, err := filepath.Abs(cfg.CacheFile)
		if err != nil {
			return Config{}, fmt.Errorf("resolve cache file %q: %w", cfg.CacheFile, err)
		}
		cfg.CacheFile = abs
	}
	if cfg.TopN <= 0 {
		cfg.TopN = scan.DefaultTopN
	}
	if cfg.MaxScans <= 0 {
		cfg.MaxScans = 100
	}

	return cfg, nil
}

// Options derives per-scan defaults from the service configuration.
func (c Config) Options() scan.Options {
	opts := scan.DefaultOptions()
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	opts.TopN = c.TopN
	opts.Excludes = c.Excludes
	return opts
}
