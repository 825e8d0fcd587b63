package models

import "time"

// CatalogEntry is the sqlite catalog index row mirroring a record's summary
// fields. Purely derived data: it can always be rebuilt from the JSON
// records and is only consumed by listing and overview generation.
type CatalogEntry struct {
	BaseName      string    `json:"base_name" gorm:"column:base_name;primaryKey"`
	Name          string    `json:"name" gorm:"column:name"`
	Type          string    `json:"type" gorm:"column:type;index"`
	Creator       string    `json:"creator" gorm:"column:creator"`
	VersionID     int       `json:"version_id" gorm:"column:version_id"`
	ModelID       int       `json:"model_id" gorm:"column:model_id"`
	VersionName   string    `json:"version_name" gorm:"column:version_name"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at"`
	DownloadCount int       `json:"download_count" gorm:"column:download_count;index"`
	Tags          string    `json:"tags" gorm:"column:tags"`
	NSFW          bool      `json:"nsfw" gorm:"column:nsfw"`
	ProcessedAt   time.Time `json:"processed_at" gorm:"column:processed_at"`
}

// TableName specifies the table name for CatalogEntry
func (CatalogEntry) TableName() string {
	return "catalog_entries"
}
