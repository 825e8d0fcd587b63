// Package metadata extracts locally available metadata from model files.
// SafeTensors containers embed a JSON header; other supported formats only
// yield basic file information.
package metadata

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/modelcat/modelcat/models"
)

// maxHeaderSize bounds the safetensors header read so a corrupt length
// prefix cannot make us allocate gigabytes.
const maxHeaderSize = 100 * 1024 * 1024

// Extract returns the local metadata for a model file. For .safetensors it
// parses the embedded header; for other supported formats it falls back to
// basic file information.
func Extract(file models.ModelFile) (map[string]any, error) {
	if file.Extension == ".safetensors" {
		return safetensorsHeader(file.Path)
	}
	return basicInfo(file)
}

// safetensorsHeader reads the safetensors container header: an 8-byte
// little-endian length followed by a JSON object. When the header carries a
// "__metadata__" section only that section is returned, matching what model
// authors embed.
func safetensorsHeader(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading header length of %s: %w", path, err)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])
	if headerLen == 0 || headerLen > maxHeaderSize {
		return nil, fmt.Errorf("implausible safetensors header length %d in %s", headerLen, path)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("parsing safetensors header of %s: %w", path, err)
	}

	if meta, ok := header["__metadata__"].(map[string]any); ok {
		return meta, nil
	}
	return header, nil
}

// basicInfo builds minimal metadata for formats without an embedded header.
func basicInfo(file models.ModelFile) (map[string]any, error) {
	return map[string]any{
		"file_name":       file.Name(),
		"file_extension":  file.Extension,
		"file_size_bytes": file.Size,
		"modified_time":   file.ModTime.Format("2006-01-02T15:04:05"),
		"note":            "No embedded metadata extracted for this format; using basic file info.",
	}, nil
}
