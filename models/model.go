package models

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SupportedExtensions is the fixed allow-list of model container formats.
var SupportedExtensions = []string{".safetensors", ".ckpt", ".pt", ".pth"}

// IsSupportedModelFile reports whether name has a supported model extension.
func IsSupportedModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ModelFile represents a model container discovered during a scan.
// It is read fresh on every scan and never mutated.
type ModelFile struct {
	Path      string    `json:"path"`
	BaseName  string    `json:"base_name"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Extension string    `json:"extension"`
}

// Name returns the filename component of the model path.
func (m ModelFile) Name() string {
	return filepath.Base(m.Path)
}

var (
	specialChars   = regexp.MustCompile(`[\[\]\(\)\{\}'"#]`)
	unsafeChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
	nonWordChars   = regexp.MustCompile(`[^\w\-]`)
	repeatedUnders = regexp.MustCompile(`_+`)
)

// SanitizeBaseName converts a file stem into a filesystem-friendly record key.
func SanitizeBaseName(stem string) string {
	s := specialChars.ReplaceAllString(stem, "_")
	s = unsafeChars.ReplaceAllString(s, "_")
	s = nonWordChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	return repeatedUnders.ReplaceAllString(s, "_")
}

// NewModelFile builds a ModelFile from a path and stat info.
func NewModelFile(path string, size int64, modTime time.Time) ModelFile {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return ModelFile{
		Path:      path,
		BaseName:  SanitizeBaseName(stem),
		Size:      size,
		ModTime:   modTime,
		Extension: ext,
	}
}
