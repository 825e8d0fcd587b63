package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flanksource/clicky"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/commons/logger"

	"github.com/modelcat/modelcat/config"
	"github.com/modelcat/modelcat/models"
	"github.com/modelcat/modelcat/store"
)

// Scheduler enumerates model files, applies selection filters and drives
// the pipeline over the batch with the inter-model delay policy.
type Scheduler struct {
	cfg     config.Config
	records store.RecordStore
	pipe    *Pipeline
	delay   *DelayPolicy
}

// NewScheduler assembles a scheduler around an existing pipeline.
func NewScheduler(cfg config.Config, records store.RecordStore, pipe *Pipeline, delay *DelayPolicy) *Scheduler {
	return &Scheduler{cfg: cfg, records: records, pipe: pipe, delay: delay}
}

// DiscoverFiles enumerates supported model files under cfg.SourceDir,
// applying the extension allow-list and include/exclude patterns. The
// result is sorted for deterministic batch order.
func DiscoverFiles(cfg config.Config) ([]models.ModelFile, error) {
	if cfg.SingleFile != "" {
		return discoverSingle(cfg.SingleFile)
	}
	root, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving source dir: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source dir %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", root)
	}

	var files []models.ModelFile
	appendFile := func(path string, fi fs.FileInfo) {
		if !models.IsSupportedModelFile(path) {
			return
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		if !matchesPatterns(rel, filepath.Base(path), cfg.Include, cfg.Exclude) {
			return
		}
		files = append(files, models.NewModelFile(path, fi.Size(), fi.ModTime()))
	}

	if cfg.Recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warnf("Skipping unreadable path %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			appendFile(path, fi)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			fi, err := e.Info()
			if err != nil {
				continue
			}
			appendFile(filepath.Join(root, e.Name()), fi)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// discoverSingle resolves one explicitly named model file, bypassing
// directory enumeration and include/exclude patterns.
func discoverSingle(path string) ([]models.ModelFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("model file %s: %w", abs, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a model file", abs)
	}
	if !models.IsSupportedModelFile(abs) {
		return nil, fmt.Errorf("%s is not a supported model file", abs)
	}
	return []models.ModelFile{models.NewModelFile(abs, fi.Size(), fi.ModTime())}, nil
}

// matchesPatterns applies include/exclude doublestar patterns against both
// the relative path and the basename.
func matchesPatterns(relPath, base string, include, exclude []string) bool {
	if len(include) > 0 {
		matched := false
		for _, pattern := range include {
			if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
				matched = true
				break
			}
			if ok, err := doublestar.Match(pattern, base); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pattern := range exclude {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return false
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return false
		}
	}
	return true
}

// selectFiles applies the only-new / only-update / skip-missing filters.
// Excluded files are reported so the summary can count them as skipped.
func (s *Scheduler) selectFiles(files []models.ModelFile, ledger *models.ProcessedLedger, missing []models.MissingEntry) (selected, excluded []models.ModelFile) {
	missingNames := make(map[string]bool, len(missing))
	for _, m := range missing {
		missingNames[m.Filename] = true
	}

	for _, f := range files {
		switch {
		case s.cfg.SkipMissing && missingNames[f.Name()]:
			excluded = append(excluded, f)
		case s.cfg.OnlyNew && ledger.IsProcessed(f.BaseName):
			excluded = append(excluded, f)
		case s.cfg.OnlyUpdate && !ledger.IsProcessed(f.BaseName):
			excluded = append(excluded, f)
		default:
			selected = append(selected, f)
		}
	}
	return selected, excluded
}

// Run processes the batch sequentially. Cancellation takes effect between
// models: a started reconciliation always completes or errors before the
// stop signal is honored.
func (s *Scheduler) Run(ctx context.Context) (summary models.BatchSummary, err error) {
	summary.StartedAt = time.Now()
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	files, err := DiscoverFiles(s.cfg)
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		logger.Warnf("No model files found in %s", s.cfg.SourceDir)
		return summary, nil
	}

	missing, err := s.records.LoadMissing()
	if err != nil {
		logger.Warnf("Failed to load missing ledger: %v", err)
	}

	selected, excluded := s.selectFiles(files, s.pipe.ledger, missing)
	for _, f := range excluded {
		summary.Add(models.Result{File: f, Outcome: models.OutcomeSkipped})
	}
	if len(selected) == 0 {
		logger.Infof("No files to process after selection filters")
		return summary, nil
	}
	logger.Infof("Processing %d of %d model files", len(selected), len(files))

	for i, file := range selected {
		select {
		case <-ctx.Done():
			logger.Infof("Batch cancelled after %d of %d models", i, len(selected))
			s.persistLedger(summary)
			return summary, ctx.Err()
		default:
		}

		result := s.processWithTask(ctx, file)
		summary.Add(result)

		// The trailing delay is skipped after the last model and for
		// models that never touched the network.
		if result.UsedNetwork && i < len(selected)-1 {
			if err := s.delay.Wait(ctx); err != nil {
				logger.Infof("Batch cancelled during inter-model delay")
				s.persistLedger(summary)
				return summary, err
			}
		}
	}

	s.persistLedger(summary)
	return summary, nil
}

// processWithTask wraps one model's reconciliation in a clicky task so
// progress shows up in the task tree. Tasks are awaited immediately, which
// keeps processing strictly sequential.
func (s *Scheduler) processWithTask(ctx context.Context, file models.ModelFile) models.Result {
	t := clicky.StartTask(fmt.Sprintf("Processing %s", file.Name()), func(_ flanksourceContext.Context, task *clicky.Task) (models.Result, error) {
		result := s.pipe.ProcessFile(ctx, file)
		switch result.Outcome {
		case models.OutcomeErrored:
			task.Errorf("%s: %v", file.Name(), result.Err)
		case models.OutcomeMissing:
			task.Warnf("%s not found upstream", file.Name())
		default:
			task.Infof("%s: %s", file.Name(), result.Outcome)
		}
		return result, nil
	})

	result, err := t.GetResult()
	if err != nil {
		return models.Result{File: file, Outcome: models.OutcomeErrored, Err: err}
	}
	return result
}

// persistLedger saves the processed ledger only when the batch actually
// changed it, so an unchanged re-run performs zero writes.
func (s *Scheduler) persistLedger(summary models.BatchSummary) {
	if s.cfg.HTMLOnly || summary.Succeeded == 0 {
		return
	}
	if err := s.records.SaveLedger(s.pipe.ledger); err != nil {
		logger.Errorf("Failed to save processed ledger: %v", err)
	}
}
