// Package store owns every on-disk representation of the catalog: per-model
// JSON records, the missing-models ledger, the processed-files ledger, the
// sqlite catalog index and the scan history. Nothing else in the repository
// writes to the output directory.
package store

import (
	"github.com/modelcat/modelcat/models"
)

// RecordStore abstracts record persistence so the pipeline never touches the
// filesystem layout directly. The default implementation is FSStore; the
// interface leaves room for an embedded-database backend later.
type RecordStore interface {
	// Load returns the record for baseName, or nil when none exists.
	Load(baseName string) (*models.ModelRecord, error)

	// Save persists the record atomically. A crash mid-write never
	// corrupts a previously saved record.
	Save(record *models.ModelRecord) error

	// Delete removes the record directory for baseName.
	Delete(baseName string) error

	// ListRecords returns the base names of all persisted records.
	ListRecords() ([]string, error)

	// AppendMissing records a not-found lookup. At most one active entry
	// per filename is kept.
	AppendMissing(entry models.MissingEntry) error

	// ClearMissing drops the active entry for filename, if any.
	ClearMissing(filename string) error

	// LoadMissing returns the active missing entries, newest first.
	LoadMissing() ([]models.MissingEntry, error)

	// LoadLedger reads the processed-files ledger, returning an empty
	// ledger when none exists.
	LoadLedger() (*models.ProcessedLedger, error)

	// SaveLedger persists the processed-files ledger atomically.
	SaveLedger(ledger *models.ProcessedLedger) error

	// RecordDir returns the directory holding baseName's files.
	RecordDir(baseName string) string

	// SavePreviewMeta writes the upstream metadata sidecar for a
	// downloaded preview file.
	SavePreviewMeta(baseName, previewName string, img models.ImageInfo) error
}
