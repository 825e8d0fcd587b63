package pipeline

import (
	"fmt"
	"sort"

	"github.com/flanksource/commons/logger"

	"github.com/modelcat/modelcat/models"
	"github.com/modelcat/modelcat/store"
)

// CleanReport summarizes what a maintenance pass removed.
type CleanReport struct {
	Vanished   int `json:"vanished" pretty:"label=Vanished records"`
	Duplicates int `json:"duplicates" pretty:"label=Duplicate records"`
}

// Cleaner removes records whose source file disappeared and collapses
// duplicate records that share a content hash.
type Cleaner struct {
	store  *store.FSStore
	index  Indexer
	ledger *models.ProcessedLedger
}

// NewCleaner builds a cleaner. index may be nil when no catalog index is open.
func NewCleaner(st *store.FSStore, index Indexer, ledger *models.ProcessedLedger) *Cleaner {
	return &Cleaner{store: st, index: index, ledger: ledger}
}

// Clean runs both maintenance passes against the current set of source
// files and saves the ledger when anything changed.
func (c *Cleaner) Clean(files []models.ModelFile) (CleanReport, error) {
	var report CleanReport

	byBase := make(map[string]models.ModelFile, len(files))
	for _, f := range files {
		byBase[f.BaseName] = f
	}

	names, err := c.store.ListRecords()
	if err != nil {
		return report, err
	}

	vanished, err := c.removeVanished(names, byBase)
	if err != nil {
		return report, err
	}
	report.Vanished = vanished

	duplicates, err := c.collapseDuplicates(byBase)
	if err != nil {
		return report, err
	}
	report.Duplicates = duplicates

	if report.Vanished > 0 || report.Duplicates > 0 {
		if err := c.store.SaveLedger(c.ledger); err != nil {
			return report, fmt.Errorf("saving ledger after clean: %w", err)
		}
	}
	return report, nil
}

// removeVanished deletes records whose source file no longer exists.
func (c *Cleaner) removeVanished(names []string, byBase map[string]models.ModelFile) (int, error) {
	removed := 0
	for _, name := range names {
		if _, ok := byBase[name]; ok {
			continue
		}
		logger.Infof("Removing record for vanished file: %s", name)
		if err := c.removeRecord(name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// collapseDuplicates groups surviving records by hash and keeps only the
// most recently processed one per group.
func (c *Cleaner) collapseDuplicates(byBase map[string]models.ModelFile) (int, error) {
	type recordInfo struct {
		baseName string
		record   *models.ModelRecord
	}

	groups := make(map[string][]recordInfo)
	for base := range byBase {
		record, err := c.store.Load(base)
		if err != nil {
			logger.Warnf("Skipping unreadable record %s during clean: %v", base, err)
			continue
		}
		if record == nil || record.Hash.HashValue == "" {
			continue
		}
		groups[record.Hash.HashValue] = append(groups[record.Hash.HashValue], recordInfo{base, record})
	}

	var reportGroups []store.DuplicateGroup
	removed := 0
	for hash, infos := range groups {
		if len(infos) < 2 {
			continue
		}
		sort.Slice(infos, func(i, j int) bool {
			return infos[i].record.ProcessedAt.After(infos[j].record.ProcessedAt)
		})
		group := store.DuplicateGroup{Hash: hash, Kept: infos[0].record.Hash.Filename}
		for _, dup := range infos[1:] {
			logger.Infof("Removing duplicate record %s (same hash as %s)", dup.baseName, infos[0].baseName)
			if err := c.removeRecord(dup.baseName); err != nil {
				return removed, err
			}
			group.Removed = append(group.Removed, dup.record.Hash.Filename)
			removed++
		}
		reportGroups = append(reportGroups, group)
	}

	sort.Slice(reportGroups, func(i, j int) bool { return reportGroups[i].Hash < reportGroups[j].Hash })
	if err := c.store.SaveDuplicateReport(reportGroups); err != nil {
		return removed, err
	}
	return removed, nil
}

func (c *Cleaner) removeRecord(baseName string) error {
	if err := c.store.Delete(baseName); err != nil {
		return err
	}
	c.ledger.Remove(baseName)
	if c.index != nil {
		if err := c.index.Remove(baseName); err != nil {
			logger.Warnf("Failed to drop %s from catalog index: %v", baseName, err)
		}
	}
	return nil
}
