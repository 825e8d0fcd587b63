// Package htmlgen renders the static browsing pages: one detail page per
// model record plus a global overview grouping models by type. The pipeline
// treats it as a collaborator that accepts finalized records and reports
// success or failure.
package htmlgen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/commons/logger"
	"github.com/yuin/goldmark"

	"github.com/modelcat/modelcat/store"
)

// NotesFileName is the optional per-model markdown file rendered into the
// detail page.
const NotesFileName = "NOTES.md"

// Generator renders pages into the record store's directory layout.
type Generator struct {
	store   *store.FSStore
	version string
}

// New creates a Generator. version is stamped into page footers.
func New(s *store.FSStore, version string) *Generator {
	return &Generator{store: s, version: version}
}

// renderNotes converts an optional NOTES.md in the record dir to HTML.
// Returns empty when no notes exist.
func (g *Generator) renderNotes(baseName string) (string, error) {
	path := filepath.Join(g.store.RecordDir(baseName), NotesFileName)
	src, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", path, err)
	}
	logger.Debugf("Rendered notes for %s", baseName)
	return buf.String(), nil
}

// writePage writes rendered HTML atomically so a crash never leaves a
// half-written page next to valid records.
func writePage(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*")
	if err != nil {
		return fmt.Errorf("creating temp page for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp page for %s: %w", path, err)
	}
	// CreateTemp defaults to 0600; pages are meant to be served.
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("moving page into place at %s: %w", path, err)
	}
	return nil
}

// RegenerateAll renders the detail page for every stored record.
func (g *Generator) RegenerateAll() (int, error) {
	names, err := g.store.ListRecords()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range names {
		record, err := g.store.Load(name)
		if err != nil {
			logger.Warnf("Skipping unreadable record %s: %v", name, err)
			continue
		}
		if record == nil {
			continue
		}
		if err := g.ModelPage(record); err != nil {
			logger.Warnf("Failed to render page for %s: %v", name, err)
			continue
		}
		count++
	}
	return count, nil
}

// recordOrDefault returns v or fallback when v is empty.
func recordOrDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
