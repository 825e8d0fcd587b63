package metadata

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcat/modelcat/models"
)

func writeSafetensors(t *testing.T, dir string, header map[string]any) string {
	t.Helper()
	headerBytes, err := json.Marshal(header)
	require.NoError(t, err)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))

	path := filepath.Join(dir, "model.safetensors")
	data := append(lenBuf[:], headerBytes...)
	data = append(data, []byte("tensor-bytes")...)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func modelFileFor(t *testing.T, path string) models.ModelFile {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return models.NewModelFile(path, info.Size(), info.ModTime())
}

func TestExtractSafetensorsMetadataSection(t *testing.T) {
	path := writeSafetensors(t, t.TempDir(), map[string]any{
		"__metadata__": map[string]any{
			"ss_base_model": "SDXL",
			"ss_network_dim": "32",
		},
		"weight.0": map[string]any{"dtype": "F16"},
	})

	meta, err := Extract(modelFileFor(t, path))
	require.NoError(t, err)
	assert.Equal(t, "SDXL", meta["ss_base_model"])
	assert.NotContains(t, meta, "weight.0")
}

func TestExtractSafetensorsWithoutMetadataSection(t *testing.T) {
	path := writeSafetensors(t, t.TempDir(), map[string]any{
		"weight.0": map[string]any{"dtype": "F16"},
	})

	meta, err := Extract(modelFileFor(t, path))
	require.NoError(t, err)
	assert.Contains(t, meta, "weight.0")
}

func TestExtractRejectsImplausibleHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.safetensors")

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], maxHeaderSize+1)
	require.NoError(t, os.WriteFile(path, lenBuf[:], 0644))

	_, err := Extract(modelFileFor(t, path))
	assert.Error(t, err)
}

func TestExtractTruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.safetensors")

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], 4096)
	require.NoError(t, os.WriteFile(path, append(lenBuf[:], []byte("{}")...), 0644))

	_, err := Extract(modelFileFor(t, path))
	assert.Error(t, err)
}

func TestExtractBasicInfoForCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0644))

	file := models.NewModelFile(path, 7, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	meta, err := Extract(file)
	require.NoError(t, err)
	assert.Equal(t, "checkpoint.ckpt", meta["file_name"])
	assert.Equal(t, ".ckpt", meta["file_extension"])
	assert.Equal(t, int64(7), meta["file_size_bytes"])
}
