package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// BatchLock serializes batches against one output directory. Concurrent
// batches would interleave writes to the same records and ledgers, so only
// one may run at a time.
type BatchLock struct {
	path string
}

// AcquireBatchLock takes the exclusive batch lock for outputDir. It fails
// when another batch already holds it.
func AcquireBatchLock(outputDir string) (*BatchLock, error) {
	dir := filepath.Join(outputDir, internalDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "batch.lock")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if os.IsExist(err) {
		return nil, fmt.Errorf("another batch is already running against %s (stale? remove %s)", outputDir, path)
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring batch lock: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing batch lock: %w", err)
	}
	return &BatchLock{path: path}, nil
}

// Release removes the lock file.
func (l *BatchLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing batch lock: %w", err)
	}
	return nil
}
