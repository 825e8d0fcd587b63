// Package pipeline implements the hash-identify-reconcile state machine and
// the batch scheduler driving it. One model is fully reconciled (hash,
// lookup, persist, images, render) before the next begins; that sequencing
// is what keeps the outbound request rate bounded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flanksource/commons/logger"

	"github.com/modelcat/modelcat/civitai"
	"github.com/modelcat/modelcat/config"
	"github.com/modelcat/modelcat/fingerprint"
	"github.com/modelcat/modelcat/metadata"
	"github.com/modelcat/modelcat/models"
	"github.com/modelcat/modelcat/store"
)

// Renderer is the HTML-generation collaborator: it accepts a finalized
// record and reports success or failure.
type Renderer interface {
	ModelPage(record *models.ModelRecord) error
}

// Indexer mirrors record summaries into the catalog index. Index failures
// never fail a model: the index is derived data.
type Indexer interface {
	Upsert(record *models.ModelRecord) error
	Remove(baseName string) error
}

// Pipeline reconciles one model file at a time against upstream state.
type Pipeline struct {
	cfg      config.Config
	store    store.RecordStore
	client   *civitai.Client
	renderer Renderer
	index    Indexer
	delay    *DelayPolicy
	ledger   *models.ProcessedLedger
}

// New assembles a pipeline. index may be nil; renderer must not be.
func New(cfg config.Config, records store.RecordStore, client *civitai.Client, renderer Renderer, index Indexer, delay *DelayPolicy, ledger *models.ProcessedLedger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    records,
		client:   client,
		renderer: renderer,
		index:    index,
		delay:    delay,
		ledger:   ledger,
	}
}

// ProcessFile runs one model through the state machine and returns its
// terminal outcome. All failures are contained at the model level.
func (p *Pipeline) ProcessFile(ctx context.Context, file models.ModelFile) models.Result {
	result := models.Result{File: file}

	if p.cfg.HTMLOnly {
		return p.renderOnly(file)
	}

	existing, err := p.store.Load(file.BaseName)
	if err != nil {
		logger.Warnf("Unreadable record for %s, treating as new: %v", file.BaseName, err)
	}

	// Hash, or reuse the stored hash in only-update mode.
	var hashInfo models.HashInfo
	if p.cfg.OnlyUpdate && existing != nil && existing.Hash.HashValue != "" {
		hashInfo = existing.Hash
	} else {
		digest, err := fingerprint.File(file.Path)
		if err != nil {
			logger.Errorf("Failed to hash %s: %v", file.Path, err)
			result.Outcome = models.OutcomeErrored
			result.Err = err
			return result
		}
		hashInfo = models.HashInfo{
			HashType:  "SHA256",
			HashValue: digest,
			Filename:  file.Name(),
			Timestamp: time.Now(),
		}
	}

	version, err := p.lookupWithRetry(ctx, hashInfo.HashValue)
	result.UsedNetwork = true
	if err != nil {
		return p.classifyLookupFailure(result, file, err)
	}

	// A successful lookup supersedes any active missing entry.
	if err := p.store.ClearMissing(file.Name()); err != nil {
		logger.Warnf("Failed to clear missing entry for %s: %v", file.Name(), err)
	}

	if !p.cfg.OnlyUpdate && !existing.NeedsRefresh(version) {
		logger.Infof("%s is up to date (last updated %s)", file.Name(), version.UpdatedAt.Format(time.RFC3339))
		result.Outcome = models.OutcomeUnchanged
		return result
	}

	record, err := p.refresh(ctx, file, existing, hashInfo, version)
	if err != nil {
		logger.Errorf("Failed to update record for %s: %v", file.Name(), err)
		result.Outcome = models.OutcomeErrored
		result.Err = err
		return result
	}

	p.syncImages(ctx, record)

	if err := p.renderer.ModelPage(record); err != nil {
		logger.Errorf("Failed to render page for %s: %v", record.BaseName, err)
		result.Outcome = models.OutcomeErrored
		result.Err = err
		return result
	}

	p.ledger.Add(record.BaseName, models.LedgerEntry{
		Path:        file.Path,
		Hash:        record.Hash.HashValue,
		ProcessedAt: time.Now(),
	})

	if p.index != nil {
		if err := p.index.Upsert(record); err != nil {
			logger.Warnf("Failed to index %s: %v", record.BaseName, err)
		}
	}

	result.Outcome = models.OutcomeSucceeded
	return result
}

// renderOnly regenerates the page from stored state without touching the
// network.
func (p *Pipeline) renderOnly(file models.ModelFile) models.Result {
	result := models.Result{File: file}
	record, err := p.store.Load(file.BaseName)
	if err != nil {
		result.Outcome = models.OutcomeErrored
		result.Err = err
		return result
	}
	if record == nil || record.Version == nil {
		logger.Debugf("No stored record for %s, skipping page generation", file.BaseName)
		result.Outcome = models.OutcomeSkipped
		return result
	}
	if err := p.renderer.ModelPage(record); err != nil {
		result.Outcome = models.OutcomeErrored
		result.Err = err
		return result
	}
	result.Outcome = models.OutcomeSucceeded
	return result
}

// lookupWithRetry performs the by-hash lookup, retrying after extended
// backoff while the retry budget allows when upstream throttles.
func (p *Pipeline) lookupWithRetry(ctx context.Context, hash string) (*models.VersionInfo, error) {
	budget := p.cfg.RetryBudget
	for {
		version, err := p.client.LookupByHash(ctx, hash)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, civitai.ErrRateLimited) || budget <= 0 {
			return nil, err
		}
		budget--
		logger.Warnf("Rate limited by upstream, backing off (%d retries left)", budget+1)
		if berr := p.delay.Backoff(ctx); berr != nil {
			return nil, berr
		}
	}
}

// classifyLookupFailure maps a lookup error onto the outcome taxonomy.
// Only a genuine not-found touches the missing ledger.
func (p *Pipeline) classifyLookupFailure(result models.Result, file models.ModelFile, err error) models.Result {
	if errors.Is(err, civitai.ErrNotFound) {
		entry := models.MissingEntry{
			Timestamp:  time.Now(),
			StatusCode: civitai.StatusCode(err),
			Filename:   file.Name(),
		}
		if aerr := p.store.AppendMissing(entry); aerr != nil {
			logger.Errorf("Failed to record missing entry for %s: %v", file.Name(), aerr)
		}
		logger.Infof("%s not found upstream (status %d)", file.Name(), entry.StatusCode)
		// Any prior record is retained so local data survives.
		result.Outcome = models.OutcomeMissing
		return result
	}
	logger.Errorf("Lookup failed for %s: %v", file.Name(), err)
	result.Outcome = models.OutcomeErrored
	result.Err = err
	return result
}

// refresh merges fresh upstream state into the record and persists it.
func (p *Pipeline) refresh(ctx context.Context, file models.ModelFile, existing *models.ModelRecord, hashInfo models.HashInfo, version *models.VersionInfo) (*models.ModelRecord, error) {
	record := existing
	if record == nil {
		record = &models.ModelRecord{BaseName: file.BaseName}
	}
	record.Hash = hashInfo
	record.Version = version
	record.ProcessedAt = time.Now()

	// Local metadata is extracted fresh except in only-update mode, where
	// the stored copy is assumed current (the file was not re-hashed).
	if !p.cfg.OnlyUpdate || record.Metadata == nil {
		meta, err := metadata.Extract(file)
		if err != nil {
			logger.Warnf("Failed to extract local metadata from %s: %v", file.Name(), err)
		} else {
			record.Metadata = meta
		}
	}

	// The model-level snapshot is best effort: its absence degrades the
	// page but never fails the model.
	if version.ModelID != 0 {
		model, err := p.client.ModelDetails(ctx, version.ModelID)
		if err != nil {
			logger.Warnf("Failed to fetch model details for %s: %v", file.Name(), err)
		} else {
			record.Model = model
		}
	}

	if err := p.store.Save(record); err != nil {
		return nil, err
	}
	return record, nil
}

// syncImages downloads preview images per policy. Failures are logged per
// image and never undo the metadata persistence that already happened.
func (p *Pipeline) syncImages(ctx context.Context, record *models.ModelRecord) {
	if p.cfg.Images == config.ImagesNone || record.Version == nil || len(record.Version.Images) == 0 {
		return
	}

	images := record.Version.Images
	if p.cfg.Images == config.ImagesFirst {
		images = images[:1]
	}

	dir := p.store.RecordDir(record.BaseName)
	var firstSaved string
	for i, img := range images {
		if img.URL == "" {
			continue
		}
		name := previewFileName(record.BaseName, i, img)
		dest := filepath.Join(dir, name)

		if fileExists(dest) {
			logger.Debugf("Preview %s already present, skipping download", name)
		} else if err := p.client.DownloadImage(ctx, img.URL, dest); err != nil {
			logger.Warnf("Failed to download preview %d for %s: %v", i, record.BaseName, err)
			continue
		} else if err := p.store.SavePreviewMeta(record.BaseName, name, img); err != nil {
			logger.Warnf("Failed to save preview metadata for %s: %v", name, err)
		}
		if firstSaved == "" {
			firstSaved = name
		}
		record.Previews = appendUnique(record.Previews, name)
	}

	if firstSaved != "" && record.Version.LocalPreview != firstSaved {
		record.Version.LocalPreview = firstSaved
		if err := p.store.Save(record); err != nil {
			logger.Warnf("Failed to persist preview reference for %s: %v", record.BaseName, err)
		}
	}
}

// previewFileName derives the local preview filename, matching the record
// layout the pages link against.
func previewFileName(baseName string, index int, img models.ImageInfo) string {
	ext := ".jpeg"
	if img.IsVideo() {
		ext = ".mp4"
	} else if e := strings.ToLower(filepath.Ext(img.URL)); e != "" && len(e) <= 5 {
		ext = e
	}
	return fmt.Sprintf("%s_preview_%d%s", baseName, index, ext)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}
