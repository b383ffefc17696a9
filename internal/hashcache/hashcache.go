// Package hashcache provides a persistent fingerprint cache backed by
// BoltDB, keyed by path, size and modification time so any change to a
// file invalidates its entry.
package hashcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "fingerprints"
	hashSize   = 32
)

const keyVersion byte = 1 // Increment when key format changes

// Cache stores file fingerprints across scans. A disabled cache (empty
// path) is valid and turns Lookup/Store into no-ops.
type Cache struct {
	db      *bolt.DB
	enabled bool
}

// Open creates or reuses a cache database at path. An empty path
// returns a disabled cache.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache (locked by another instance?): %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db, enabled: true}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// makeKey builds a deterministic byte key for a file identity.
// Key = ver(1) + path + NUL + size(8) + mtime(8)
func makeKey(path string, size int64, modTime time.Time) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(path)
	buf.WriteByte(0) // NUL separator
	_ = binary.Write(buf, binary.BigEndian, size)
	_ = binary.Write(buf, binary.BigEndian, modTime.UnixNano())
	return buf.Bytes()
}

// Lookup retrieves a cached fingerprint. Any change to size or mtime is
// a miss. Returns nil without error when not found or disabled.
func (c *Cache) Lookup(path string, size int64, modTime time.Time) []byte {
	if !c.enabled {
		return nil
	}

	var sum []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get(makeKey(path, size, modTime))
		if len(data) == hashSize {
			sum = make([]byte, hashSize)
			copy(sum, data)
		}
		return nil
	})
	return sum
}

// Store saves a fingerprint for a file identity.
func (c *Cache) Store(path string, size int64, modTime time.Time, sum []byte) error {
	if !c.enabled || len(sum) != hashSize {
		return nil
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(path, size, modTime), sum)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
