// Package config holds the immutable configuration snapshot a batch runs
// under. The CLI builds one snapshot per invocation; nothing mutates it
// while the batch is in flight.
package config

import (
	"fmt"
	"time"
)

// ImagePolicy controls which preview images are downloaded per model.
type ImagePolicy string

const (
	// ImagesFirst downloads only the first listed preview (default).
	ImagesFirst ImagePolicy = "first"
	// ImagesAll downloads every listed preview.
	ImagesAll ImagePolicy = "all"
	// ImagesNone skips preview downloads entirely.
	ImagesNone ImagePolicy = "none"
)

const (
	// DefaultDelayMin and DefaultDelayMax bound the randomized wait
	// between successive API-touching models.
	DefaultDelayMin = 3 * time.Second
	DefaultDelayMax = 6 * time.Second

	// DefaultRetryBudget is how many in-run retries a rate-limited lookup
	// gets before being downgraded to a transient error.
	DefaultRetryBudget = 2

	// DefaultTimeout bounds each metadata request.
	DefaultTimeout = 30 * time.Second
)

// Config is the batch configuration snapshot.
type Config struct {
	SourceDir string `json:"source_dir" yaml:"source_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// SingleFile restricts the batch to one model file.
	SingleFile string `json:"single_file,omitempty" yaml:"single_file,omitempty"`

	Recursive bool        `json:"recursive" yaml:"recursive"`
	Images    ImagePolicy `json:"images" yaml:"images"`

	OnlyNew     bool `json:"only_new" yaml:"only_new"`
	OnlyUpdate  bool `json:"only_update" yaml:"only_update"`
	HTMLOnly    bool `json:"html_only" yaml:"html_only"`
	SkipMissing bool `json:"skip_missing" yaml:"skip_missing"`

	NoDelay     bool          `json:"no_delay" yaml:"no_delay"`
	DelayMin    time.Duration `json:"delay_min" yaml:"delay_min"`
	DelayMax    time.Duration `json:"delay_max" yaml:"delay_max"`
	RetryBudget int           `json:"retry_budget" yaml:"retry_budget"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`

	BaseURL string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// ApplyDefaults fills unset timing and policy fields.
func (c *Config) ApplyDefaults() {
	if c.Images == "" {
		c.Images = ImagesFirst
	}
	if c.DelayMin <= 0 {
		c.DelayMin = DefaultDelayMin
	}
	if c.DelayMax <= 0 {
		c.DelayMax = DefaultDelayMax
	}
	if c.RetryBudget < 0 {
		c.RetryBudget = DefaultRetryBudget
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate rejects contradictory selections instead of guessing precedence.
func (c *Config) Validate() error {
	if c.OnlyNew && c.OnlyUpdate {
		return fmt.Errorf("--only-new and --only-update are mutually exclusive")
	}
	if c.OnlyNew && c.HTMLOnly {
		return fmt.Errorf("--only-new and --html-only are mutually exclusive")
	}
	if c.OnlyUpdate && c.HTMLOnly {
		return fmt.Errorf("--only-update and --html-only are mutually exclusive")
	}
	switch c.Images {
	case ImagesFirst, ImagesAll, ImagesNone:
	default:
		return fmt.Errorf("invalid image policy %q", c.Images)
	}
	if c.DelayMin > c.DelayMax {
		return fmt.Errorf("delay-min (%s) must not exceed delay-max (%s)", c.DelayMin, c.DelayMax)
	}
	return nil
}
