package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flanksource/commons/logger"

	"github.com/modelcat/modelcat/models"
)

const (
	missingFileName = "missing_from_civitai.txt"
	ledgerFileName  = "processed_files.json"
)

var missingHeader = []string{
	"# Files not found on Civitai",
	"# Format: Timestamp | Status Code | Filename",
	"# This file is automatically updated when the script runs",
	"# A file is removed from this list when it becomes available again",
	"",
}

// FSStore implements RecordStore over a directory of per-model JSON files,
// mirroring the layout browsers and the HTML generator expect:
//
//	<output>/<base>/<base>_hash.json
//	<output>/<base>/<base>_metadata.json
//	<output>/<base>/<base>_civitai_model_version.json
//	<output>/<base>/<base>_civitai_model.json
//	<output>/<base>/<base>_preview_<i>.<ext> (+ .json sidecar)
type FSStore struct {
	baseDir string
}

// NewFSStore creates the output directory if needed and verifies it is
// writable. A failure here is batch-fatal.
func NewFSStore(baseDir string) (*FSStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir %s: %w", abs, err)
	}
	probe, err := os.CreateTemp(abs, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("output dir %s is not writable: %w", abs, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return &FSStore{baseDir: abs}, nil
}

// OpenFSStore opens an existing output directory without creating or
// touching anything. Read-only commands use this so a mistyped path
// errors instead of materializing an empty catalog.
func OpenFSStore(baseDir string) (*FSStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving output dir: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("output dir %s: %w", abs, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", abs)
	}
	return &FSStore{baseDir: abs}, nil
}

// BaseDir returns the output directory root.
func (s *FSStore) BaseDir() string { return s.baseDir }

// RecordDir returns the directory holding baseName's files.
func (s *FSStore) RecordDir(baseName string) string {
	return filepath.Join(s.baseDir, baseName)
}

func (s *FSStore) recordFile(baseName, suffix string) string {
	return filepath.Join(s.baseDir, baseName, baseName+suffix)
}

// writeJSON writes v to path atomically: temp file in the same directory,
// then rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	// CreateTemp defaults to 0600; records are meant to be readable.
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("moving %s into place: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}

// Load composes a ModelRecord from the per-model files. Returns nil when no
// hash file exists, which is the marker for "never processed".
func (s *FSStore) Load(baseName string) (*models.ModelRecord, error) {
	record := &models.ModelRecord{BaseName: baseName}

	ok, err := readJSON(s.recordFile(baseName, "_hash.json"), &record.Hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	record.ProcessedAt = record.Hash.Timestamp

	if _, err := readJSON(s.recordFile(baseName, "_metadata.json"), &record.Metadata); err != nil {
		return nil, err
	}

	var version models.VersionInfo
	if ok, err := readJSON(s.recordFile(baseName, "_civitai_model_version.json"), &version); err != nil {
		logger.Warnf("Ignoring unreadable version snapshot for %s: %v", baseName, err)
	} else if ok && version.ID != 0 {
		record.Version = &version
	}

	var model models.ModelInfo
	if ok, err := readJSON(s.recordFile(baseName, "_civitai_model.json"), &model); err != nil {
		logger.Warnf("Ignoring unreadable model snapshot for %s: %v", baseName, err)
	} else if ok && model.ID != 0 {
		record.Model = &model
	}

	record.Previews = s.previewFiles(baseName)
	return record, nil
}

// previewFiles lists downloaded preview filenames for baseName, sorted.
func (s *FSStore) previewFiles(baseName string) []string {
	entries, err := os.ReadDir(s.RecordDir(baseName))
	if err != nil {
		return nil
	}
	var previews []string
	prefix := baseName + "_preview"
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".json") {
			continue
		}
		previews = append(previews, name)
	}
	sort.Strings(previews)
	return previews
}

// Save persists every populated part of the record.
func (s *FSStore) Save(record *models.ModelRecord) error {
	dir := s.RecordDir(record.BaseName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating record dir %s: %w", dir, err)
	}
	if err := writeJSON(s.recordFile(record.BaseName, "_hash.json"), record.Hash); err != nil {
		return err
	}
	if record.Metadata != nil {
		if err := writeJSON(s.recordFile(record.BaseName, "_metadata.json"), record.Metadata); err != nil {
			return err
		}
	}
	if record.Version != nil {
		if err := writeJSON(s.recordFile(record.BaseName, "_civitai_model_version.json"), record.Version); err != nil {
			return err
		}
	}
	if record.Model != nil {
		if err := writeJSON(s.recordFile(record.BaseName, "_civitai_model.json"), record.Model); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the record directory for baseName.
func (s *FSStore) Delete(baseName string) error {
	dir := s.RecordDir(baseName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing record dir %s: %w", dir, err)
	}
	return nil
}

// ListRecords returns base names of all directories holding a hash file.
func (s *FSStore) ListRecords() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading output dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(s.recordFile(e.Name(), "_hash.json")); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// SavePreviewMeta writes the metadata sidecar next to a preview file.
func (s *FSStore) SavePreviewMeta(baseName, previewName string, img models.ImageInfo) error {
	stem := strings.TrimSuffix(previewName, filepath.Ext(previewName))
	return writeJSON(filepath.Join(s.RecordDir(baseName), stem+".json"), img)
}

func (s *FSStore) missingPath() string {
	return filepath.Join(s.baseDir, missingFileName)
}

// LoadMissing reads the active missing entries, newest first. Malformed
// lines are skipped with a warning rather than failing the batch.
func (s *FSStore) LoadMissing() ([]models.MissingEntry, error) {
	data, err := os.ReadFile(s.missingPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading missing ledger: %w", err)
	}
	var entries []models.MissingEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := models.ParseMissingLine(line)
		if err != nil {
			logger.Warnf("Skipping malformed missing entry: %v", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// saveMissing rewrites the ledger with its header block, entries sorted
// newest first. An empty entry set removes the file entirely.
func (s *FSStore) saveMissing(entries []models.MissingEntry) error {
	if len(entries) == 0 {
		err := os.Remove(s.missingPath())
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing missing ledger: %w", err)
		}
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Line() > entries[j].Line()
	})
	var b strings.Builder
	for _, h := range missingHeader {
		b.WriteString(h)
		b.WriteString("\n")
	}
	for _, e := range entries {
		b.WriteString(e.Line())
		b.WriteString("\n")
	}
	return writeFileAtomic(s.missingPath(), []byte(b.String()))
}

// AppendMissing records entry, replacing any active entry for the same
// filename so at most one stays active.
func (s *FSStore) AppendMissing(entry models.MissingEntry) error {
	entries, err := s.LoadMissing()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Filename != entry.Filename {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)
	return s.saveMissing(kept)
}

// ClearMissing drops the active entry for filename, if any.
func (s *FSStore) ClearMissing(filename string) error {
	entries, err := s.LoadMissing()
	if err != nil {
		return err
	}
	kept := entries[:0]
	changed := false
	for _, e := range entries {
		if e.Filename == filename {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	if !changed {
		return nil
	}
	if len(kept) == 0 {
		logger.Infof("All models are now available upstream, removing %s", missingFileName)
	}
	return s.saveMissing(kept)
}

// DuplicateGroup describes a set of records sharing one content hash.
type DuplicateGroup struct {
	Hash    string
	Kept    string
	Removed []string
}

// SaveDuplicateReport writes duplicate_models.txt describing which records
// were kept and which were removed. An empty group set removes the file.
func (s *FSStore) SaveDuplicateReport(groups []DuplicateGroup) error {
	path := filepath.Join(s.baseDir, "duplicate_models.txt")
	if len(groups) == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing duplicate report: %w", err)
		}
		return nil
	}
	var b strings.Builder
	b.WriteString("# Duplicate models detected by content hash\n")
	b.WriteString("# The newest record was kept, the rest were removed\n\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "Hash: %s\n", g.Hash)
		fmt.Fprintf(&b, "Kept: %s\n", g.Kept)
		b.WriteString("Removed:\n")
		for _, r := range g.Removed {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
		b.WriteString("\n")
	}
	return writeFileAtomic(path, []byte(b.String()))
}

func (s *FSStore) ledgerPath() string {
	return filepath.Join(s.baseDir, ledgerFileName)
}

// LoadLedger reads the processed-files ledger, or an empty one when absent
// or unreadable.
func (s *FSStore) LoadLedger() (*models.ProcessedLedger, error) {
	ledger := models.NewProcessedLedger()
	ok, err := readJSON(s.ledgerPath(), ledger)
	if err != nil {
		logger.Warnf("Resetting unreadable processed ledger: %v", err)
		return models.NewProcessedLedger(), nil
	}
	if !ok || ledger.Files == nil {
		return models.NewProcessedLedger(), nil
	}
	return ledger, nil
}

// SaveLedger persists the processed-files ledger atomically.
func (s *FSStore) SaveLedger(ledger *models.ProcessedLedger) error {
	return writeJSON(s.ledgerPath(), ledger)
}
