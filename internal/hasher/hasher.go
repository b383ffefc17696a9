// Package hasher computes content fingerprints by streaming file bytes
// through a SHA-256 digest in fixed-size chunks, so arbitrarily large
// files are hashed under bounded memory.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the read buffer size used when none is configured.
const DefaultChunkSize = 8 * 1024 // 8 KiB

// Size is the fingerprint length in bytes.
const Size = sha256.Size

// Hasher streams files through a cryptographic digest.
type Hasher struct {
	chunkSize int
}

// New creates a Hasher reading in chunks of chunkSize bytes.
// chunkSize <= 0 selects DefaultChunkSize.
func New(chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{chunkSize: chunkSize}
}

// Hash returns the hex-encoded SHA-256 digest of the file contents.
// The digest does not depend on the configured chunk size. If the file
// becomes unreadable mid-stream the error is returned and no digest of
// partial content is produced.
func (h *Hasher) Hash(path string) (string, error) {
	sum, err := h.Sum(path)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// Sum is Hash returning the raw digest bytes.
func (h *Hasher) Sum(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	digest := sha256.New()
	buf := make([]byte, h.chunkSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return digest.Sum(nil), nil
}
