// Package fingerprint computes stable content hashes for model files.
// The hash is the sole lookup key against the upstream metadata API, so it
// must depend on file bytes only, never on the filename.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read buffer used when streaming file contents.
const ChunkSize = 64 * 1024

// Reader streams r through SHA-256 and returns the lowercase hex digest.
// The digest is independent of the chunk size used to feed the hash.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hashing stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File computes the content hash of the file at path without loading it
// into memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	digest, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}
