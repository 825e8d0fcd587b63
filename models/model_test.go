package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsSupportedModelFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"lora.safetensors", true},
		{"checkpoint.ckpt", true},
		{"weights.pt", true},
		{"weights.pth", true},
		{"UPPER.SAFETENSORS", true},
		{"readme.txt", false},
		{"archive.zip", false},
		{"noextension", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupportedModelFile(tt.name), tt.name)
	}
}

func TestSanitizeBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple-model", "simple-model"},
		{"model [v2] (final)", "model_v2_final"},
		{"weird:name|here?", "weird_name_here"},
		{"__trimmed__", "trimmed"},
		{"a   b", "a_b"},
		{"unicodeéname", "unicode_name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeBaseName(tt.in), tt.in)
	}
}

func TestNewModelFile(t *testing.T) {
	now := time.Now()
	f := NewModelFile("/models/My Lora [v2].safetensors", 1024, now)

	assert.Equal(t, "My Lora [v2].safetensors", f.Name())
	assert.Equal(t, "My_Lora_v2", f.BaseName)
	assert.Equal(t, ".safetensors", f.Extension)
	assert.Equal(t, int64(1024), f.Size)
}
