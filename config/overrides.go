package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/commons/logger"
	"github.com/pelletier/go-toml/v2"
)

// OverridesFileName is the optional per-directory override file read from
// the scan directory.
const OverridesFileName = "modelcat.toml"

// Overrides are directory-scoped settings model collections can carry with
// them, e.g. a collection that should never download previews.
type Overrides struct {
	Images    string   `toml:"images"`
	Recursive *bool    `toml:"recursive"`
	Include   []string `toml:"include"`
	Exclude   []string `toml:"exclude"`
}

// LoadOverrides reads modelcat.toml from dir. Returns nil when the file
// does not exist.
func LoadOverrides(dir string) (*Overrides, error) {
	path := filepath.Join(dir, OverridesFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var o Overrides
	if err := toml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	logger.Infof("Applying directory overrides from %s", path)
	return &o, nil
}

// Merge applies the overrides onto the snapshot. Empty override fields
// leave the snapshot untouched.
func (c *Config) Merge(o *Overrides) {
	if o == nil {
		return
	}
	if o.Images != "" {
		c.Images = ImagePolicy(o.Images)
	}
	if o.Recursive != nil {
		c.Recursive = *o.Recursive
	}
	if len(o.Include) > 0 {
		c.Include = append(c.Include, o.Include...)
	}
	if len(o.Exclude) > 0 {
		c.Exclude = append(c.Exclude, o.Exclude...)
	}
}
