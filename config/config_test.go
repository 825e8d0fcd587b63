package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, ImagesFirst, cfg.Images)
	assert.Equal(t, DefaultDelayMin, cfg.DelayMin)
	assert.Equal(t, DefaultDelayMax, cfg.DelayMax)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestValidateExclusiveFlags(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"only-new alone", func(c *Config) { c.OnlyNew = true }, false},
		{"only-new with only-update", func(c *Config) { c.OnlyNew = true; c.OnlyUpdate = true }, true},
		{"only-new with html-only", func(c *Config) { c.OnlyNew = true; c.HTMLOnly = true }, true},
		{"only-update with html-only", func(c *Config) { c.OnlyUpdate = true; c.HTMLOnly = true }, true},
		{"bad image policy", func(c *Config) { c.Images = "some" }, true},
		{"inverted delays", func(c *Config) { c.DelayMin = 10 * time.Second; c.DelayMax = 5 * time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{SourceDir: "."}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()

	o, err := LoadOverrides(dir)
	require.NoError(t, err)
	assert.Nil(t, o, "absent file yields nil overrides")

	content := `
images = "none"
recursive = true
exclude = ["drafts/**"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverridesFileName), []byte(content), 0644))

	o, err = LoadOverrides(dir)
	require.NoError(t, err)
	require.NotNil(t, o)

	cfg := Config{Images: ImagesFirst, Exclude: []string{"*.bak"}}
	cfg.Merge(o)
	assert.Equal(t, ImagesNone, cfg.Images)
	assert.True(t, cfg.Recursive)
	assert.Equal(t, []string{"*.bak", "drafts/**"}, cfg.Exclude)
}

func TestLoadOverridesMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverridesFileName), []byte("images = ["), 0644))

	_, err := LoadOverrides(dir)
	assert.Error(t, err)
}
