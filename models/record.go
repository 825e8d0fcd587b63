package models

import "time"

// HashInfo mirrors the on-disk <base>_hash.json file.
type HashInfo struct {
	HashType  string    `json:"hash_type"`
	HashValue string    `json:"hash_value"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

// ImageInfo is one preview image entry from a version snapshot.
type ImageInfo struct {
	URL       string         `json:"url"`
	Type      string         `json:"type,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	Hash      string         `json:"hash,omitempty"`
	NSFWLevel int            `json:"nsfwLevel,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// IsVideo reports whether the preview entry is a video clip.
func (i ImageInfo) IsVideo() bool {
	return i.Type == "video"
}

// VersionStats holds the per-version counters returned upstream.
type VersionStats struct {
	DownloadCount int     `json:"downloadCount"`
	RatingCount   int     `json:"ratingCount"`
	Rating        float64 `json:"rating"`
}

// VersionInfo is the version-level upstream snapshot
// (persisted as <base>_civitai_model_version.json).
type VersionInfo struct {
	ID           int          `json:"id"`
	ModelID      int          `json:"modelId"`
	Name         string       `json:"name"`
	BaseModel    string       `json:"baseModel,omitempty"`
	Description  string       `json:"description,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	TrainedWords []string     `json:"trainedWords,omitempty"`
	Images       []ImageInfo  `json:"images,omitempty"`
	Stats        VersionStats `json:"stats"`
	DownloadURL  string       `json:"downloadUrl,omitempty"`

	// LocalPreview names the first preview file saved next to the record.
	LocalPreview string `json:"local_preview_image,omitempty"`
}

// Creator identifies the upstream account that published a model.
type Creator struct {
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
}

// ModelInfo is the model-level upstream snapshot
// (persisted as <base>_civitai_model.json).
type ModelInfo struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Type          string        `json:"type"`
	NSFW          bool          `json:"nsfw"`
	Tags          []string      `json:"tags,omitempty"`
	Creator       Creator       `json:"creator"`
	ModelVersions []VersionInfo `json:"modelVersions,omitempty"`
}

// ModelRecord aggregates everything persisted for one model, keyed by
// sanitized base name. The store splits it across the per-model JSON files.
type ModelRecord struct {
	BaseName    string         `json:"base_name"`
	Hash        HashInfo       `json:"hash"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Version     *VersionInfo   `json:"version,omitempty"`
	Model       *ModelInfo     `json:"model,omitempty"`
	Previews    []string       `json:"previews,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// NeedsRefresh reports whether the remote version is strictly newer than the
// stored snapshot. Equal timestamps are treated as unchanged so re-runs are
// idempotent.
func (r *ModelRecord) NeedsRefresh(remote *VersionInfo) bool {
	if r == nil || r.Version == nil {
		return true
	}
	if r.Version.UpdatedAt.IsZero() || remote.UpdatedAt.IsZero() {
		return true
	}
	return remote.UpdatedAt.After(r.Version.UpdatedAt)
}
