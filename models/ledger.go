package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MissingTimeFormat is the timestamp layout used in the missing-models ledger.
const MissingTimeFormat = "2006-01-02 15:04:05"

// MissingEntry is one line of the missing-models ledger: a file whose hash
// lookup returned "not found" upstream.
type MissingEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"status_code"`
	Filename   string    `json:"filename"`
}

// Line renders the entry in the ledger format
// "<timestamp> | Status <code> | <filename>".
func (e MissingEntry) Line() string {
	return fmt.Sprintf("%s | Status %d | %s", e.Timestamp.Format(MissingTimeFormat), e.StatusCode, e.Filename)
}

// ParseMissingLine parses a ledger line back into a MissingEntry.
func ParseMissingLine(line string) (MissingEntry, error) {
	parts := strings.Split(line, " | ")
	if len(parts) != 3 {
		return MissingEntry{}, fmt.Errorf("malformed missing entry: %q", line)
	}
	ts, err := time.ParseInLocation(MissingTimeFormat, parts[0], time.Local)
	if err != nil {
		return MissingEntry{}, fmt.Errorf("malformed timestamp in %q: %w", line, err)
	}
	code, err := strconv.Atoi(strings.TrimPrefix(parts[1], "Status "))
	if err != nil {
		return MissingEntry{}, fmt.Errorf("malformed status in %q: %w", line, err)
	}
	return MissingEntry{Timestamp: ts, StatusCode: code, Filename: parts[2]}, nil
}

// LedgerEntry records when a model was last fully processed and with which
// content hash.
type LedgerEntry struct {
	Path        string    `json:"path"`
	Hash        string    `json:"hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ProcessedLedger maps sanitized base names to their last-processed state.
// It backs the only-new and only-update selection filters without having to
// re-read every record.
type ProcessedLedger struct {
	Files      map[string]LedgerEntry `json:"files"`
	LastUpdate time.Time              `json:"last_update"`
}

// NewProcessedLedger returns an empty ledger.
func NewProcessedLedger() *ProcessedLedger {
	return &ProcessedLedger{Files: make(map[string]LedgerEntry)}
}

// IsProcessed reports whether baseName has a ledger entry.
func (l *ProcessedLedger) IsProcessed(baseName string) bool {
	if l == nil || l.Files == nil {
		return false
	}
	_, ok := l.Files[baseName]
	return ok
}

// Add records or replaces the entry for baseName.
func (l *ProcessedLedger) Add(baseName string, entry LedgerEntry) {
	if l.Files == nil {
		l.Files = make(map[string]LedgerEntry)
	}
	l.Files[baseName] = entry
	l.LastUpdate = time.Now()
}

// Remove drops the entry for baseName if present.
func (l *ProcessedLedger) Remove(baseName string) {
	delete(l.Files, baseName)
}
