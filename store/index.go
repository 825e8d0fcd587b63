package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	commonsLogger "github.com/flanksource/commons/logger"

	"github.com/modelcat/modelcat/models"
)

const internalDirName = ".modelcat"

// CatalogIndex is a sqlite mirror of record summaries used by `list` and by
// overview generation. Losing it is harmless: Rebuild restores it from the
// JSON records.
type CatalogIndex struct {
	db *gorm.DB
}

// OpenIndex opens (or creates) the catalog index under the output dir.
func OpenIndex(outputDir string) (*CatalogIndex, error) {
	dir := filepath.Join(outputDir, internalDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index dir %s: %w", dir, err)
	}

	// DriverName selects the pure-Go modernc driver (registered as "sqlite"
	// by history.go's blank import) so the index works with CGO_ENABLED=0.
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: filepath.Join(dir, "index.db")}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog index: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := db.AutoMigrate(&models.CatalogEntry{}); err != nil {
		return nil, fmt.Errorf("migrating catalog index: %w", err)
	}
	return &CatalogIndex{db: db}, nil
}

// Close releases the underlying database handle.
func (c *CatalogIndex) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert replaces the index row for the record.
func (c *CatalogIndex) Upsert(record *models.ModelRecord) error {
	entry := entryFromRecord(record)
	if err := c.db.Save(&entry).Error; err != nil {
		return fmt.Errorf("upserting catalog entry %s: %w", record.BaseName, err)
	}
	return nil
}

// Remove drops the index row for baseName.
func (c *CatalogIndex) Remove(baseName string) error {
	if err := c.db.Delete(&models.CatalogEntry{}, "base_name = ?", baseName).Error; err != nil {
		return fmt.Errorf("removing catalog entry %s: %w", baseName, err)
	}
	return nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Type string
	Tag  string
}

// List returns index rows matching the filter, most downloaded first.
func (c *CatalogIndex) List(filter ListFilter) ([]models.CatalogEntry, error) {
	q := c.db.Model(&models.CatalogEntry{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Tag != "" {
		q = q.Where("tags LIKE ?", "%"+filter.Tag+"%")
	}
	var entries []models.CatalogEntry
	if err := q.Order("download_count DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing catalog entries: %w", err)
	}
	return entries, nil
}

// Rebuild drops all rows and re-derives them from the record store.
func (c *CatalogIndex) Rebuild(records RecordStore) error {
	if err := c.db.Where("1 = 1").Delete(&models.CatalogEntry{}).Error; err != nil {
		return fmt.Errorf("clearing catalog index: %w", err)
	}
	names, err := records.ListRecords()
	if err != nil {
		return err
	}
	for _, name := range names {
		record, err := records.Load(name)
		if err != nil || record == nil {
			commonsLogger.Warnf("Skipping %s during index rebuild: %v", name, err)
			continue
		}
		if err := c.Upsert(record); err != nil {
			return err
		}
	}
	return nil
}

// entryFromRecord projects the summary fields out of a full record.
func entryFromRecord(record *models.ModelRecord) models.CatalogEntry {
	entry := models.CatalogEntry{
		BaseName:    record.BaseName,
		ProcessedAt: record.ProcessedAt,
	}
	if record.Version != nil {
		entry.VersionID = record.Version.ID
		entry.ModelID = record.Version.ModelID
		entry.VersionName = record.Version.Name
		entry.UpdatedAt = record.Version.UpdatedAt
		entry.DownloadCount = record.Version.Stats.DownloadCount
	}
	if record.Model != nil {
		entry.Name = record.Model.Name
		entry.Type = record.Model.Type
		entry.Creator = record.Model.Creator.Username
		entry.NSFW = record.Model.NSFW
		entry.Tags = strings.Join(record.Model.Tags, ",")
	}
	if entry.Name == "" {
		entry.Name = record.BaseName
	}
	return entry
}
