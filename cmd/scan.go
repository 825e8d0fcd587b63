package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/modelcat/modelcat/civitai"
	"github.com/modelcat/modelcat/config"
	"github.com/modelcat/modelcat/htmlgen"
	"github.com/modelcat/modelcat/output"
	"github.com/modelcat/modelcat/pipeline"
	"github.com/modelcat/modelcat/store"
)

var scanFlags struct {
	outDir      string
	file        string
	recursive   bool
	images      string
	noImages    bool
	onlyNew     bool
	onlyUpdate  bool
	htmlOnly    bool
	skipMissing bool
	noDelay     bool
	delayMin    time.Duration
	delayMax    time.Duration
	retryBudget int
	timeout     time.Duration
	baseURL     string
	include     []string
	exclude     []string
}

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Scan a directory of model files and reconcile against Civitai",
	Long: `Scan enumerates supported model files, fingerprints each one by SHA-256,
queries Civitai by hash and persists JSON records plus an HTML page per
model. Re-running a scan only touches models whose upstream metadata is
newer than the stored snapshot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceDir := "."
		if len(args) == 1 {
			sourceDir = args[0]
		}
		if scanFlags.noImages {
			if cmd.Flags().Changed("images") {
				return fmt.Errorf("--images and --no-images are mutually exclusive")
			}
			scanFlags.images = string(config.ImagesNone)
		}
		if scanFlags.file != "" {
			if len(args) == 1 {
				return fmt.Errorf("--file cannot be combined with a directory argument")
			}
			sourceDir = filepath.Dir(scanFlags.file)
		}
		cfg, err := buildScanConfig(sourceDir)
		if err != nil {
			return err
		}
		return runScan(cfg)
	},
}

func buildScanConfig(sourceDir string) (config.Config, error) {
	cfg := config.Config{
		SourceDir:   sourceDir,
		OutputDir:   scanFlags.outDir,
		SingleFile:  scanFlags.file,
		Recursive:   scanFlags.recursive,
		Images:      config.ImagePolicy(scanFlags.images),
		OnlyNew:     scanFlags.onlyNew,
		OnlyUpdate:  scanFlags.onlyUpdate,
		HTMLOnly:    scanFlags.htmlOnly,
		SkipMissing: scanFlags.skipMissing,
		NoDelay:     scanFlags.noDelay,
		DelayMin:    scanFlags.delayMin,
		DelayMax:    scanFlags.delayMax,
		RetryBudget: scanFlags.retryBudget,
		Timeout:     scanFlags.timeout,
		BaseURL:     scanFlags.baseURL,
		Include:     scanFlags.include,
		Exclude:     scanFlags.exclude,
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.SourceDir
	}
	cfg.ApplyDefaults()

	overrides, err := config.LoadOverrides(cfg.SourceDir)
	if err != nil {
		return cfg, err
	}
	cfg.Merge(overrides)

	return cfg, cfg.Validate()
}

func runScan(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := store.NewFSStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	lock, err := store.AcquireBatchLock(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	ledger, err := records.LoadLedger()
	if err != nil {
		return err
	}

	index, err := store.OpenIndex(cfg.OutputDir)
	if err != nil {
		logger.Warnf("Catalog index unavailable, continuing without it: %v", err)
		index = nil
	}
	defer closeIndex(index)

	client := civitai.New(civitai.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})

	generator := htmlgen.New(records, versionString())

	delayMin, delayMax := cfg.DelayMin, cfg.DelayMax
	if cfg.NoDelay {
		delayMin, delayMax = 0, 0
	}
	delay := pipeline.NewDelayPolicy(delayMin, delayMax)

	pipe := pipeline.New(cfg, records, client, generator, indexOrNil(index), delay, ledger)
	scheduler := pipeline.NewScheduler(cfg, records, pipe, delay)

	summary, runErr := scheduler.Run(ctx)

	if summary.Succeeded > 0 || cfg.HTMLOnly {
		regenerateOverview(records, index, generator)
	}

	if history, err := store.OpenHistory(cfg.OutputDir); err != nil {
		logger.Warnf("Scan history unavailable: %v", err)
	} else {
		if err := history.Record(cfg.SourceDir, summary); err != nil {
			logger.Warnf("Failed to record scan history: %v", err)
		}
		history.Close()
	}

	out := output.NewOutputManager(outputFormat)
	out.SetOutputFile(outputFile)
	if err := out.Summary(summary); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed() {
		return fmt.Errorf("%d of %d models errored", summary.Errored, summary.Total)
	}
	return nil
}

// regenerateOverview rewrites the cross-model index page from the catalog
// index when one is open.
func regenerateOverview(records *store.FSStore, index *store.CatalogIndex, generator *htmlgen.Generator) {
	if index == nil {
		logger.Debugf("Skipping overview page: no catalog index")
		return
	}
	entries, err := index.List(store.ListFilter{})
	if err != nil {
		logger.Warnf("Failed to list catalog entries for overview: %v", err)
		return
	}
	if err := generator.Overview(entries); err != nil {
		logger.Warnf("Failed to write overview page: %v", err)
	}
}

func closeIndex(index *store.CatalogIndex) {
	if index == nil {
		return
	}
	if err := index.Close(); err != nil {
		logger.Debugf("Closing catalog index: %v", err)
	}
}

// indexOrNil keeps a typed nil from leaking into the pipeline's Indexer
// interface.
func indexOrNil(index *store.CatalogIndex) pipeline.Indexer {
	if index == nil {
		return nil
	}
	return index
}

func init() {
	scanCmd.Flags().StringVar(&scanFlags.outDir, "out-dir", "", "Output directory for records (defaults to the source directory)")
	scanCmd.Flags().StringVar(&scanFlags.file, "file", "", "Catalog a single model file instead of a directory")
	scanCmd.Flags().BoolVarP(&scanFlags.recursive, "recursive", "r", false, "Descend into subdirectories")
	scanCmd.Flags().StringVar(&scanFlags.images, "images", string(config.ImagesFirst), "Preview image policy: first, all or none")
	scanCmd.Flags().BoolVar(&scanFlags.noImages, "no-images", false, "Shorthand for --images none")
	scanCmd.Flags().BoolVar(&scanFlags.onlyNew, "only-new", false, "Process only files never cataloged before")
	scanCmd.Flags().BoolVar(&scanFlags.onlyUpdate, "only-update", false, "Refresh only files already cataloged")
	scanCmd.Flags().BoolVar(&scanFlags.htmlOnly, "html-only", false, "Regenerate HTML pages from stored records, no network")
	scanCmd.Flags().BoolVar(&scanFlags.skipMissing, "skip-missing", false, "Skip files currently listed as missing upstream")
	scanCmd.Flags().BoolVar(&scanFlags.noDelay, "no-delay", false, "Disable the randomized inter-model delay")
	scanCmd.Flags().DurationVar(&scanFlags.delayMin, "delay-min", config.DefaultDelayMin, "Minimum inter-model delay")
	scanCmd.Flags().DurationVar(&scanFlags.delayMax, "delay-max", config.DefaultDelayMax, "Maximum inter-model delay")
	scanCmd.Flags().IntVar(&scanFlags.retryBudget, "retry-budget", config.DefaultRetryBudget, "In-run retries for rate-limited lookups")
	scanCmd.Flags().DurationVar(&scanFlags.timeout, "timeout", config.DefaultTimeout, "Per-request metadata timeout")
	scanCmd.Flags().StringVar(&scanFlags.baseURL, "base-url", "", "Override the Civitai API base URL")
	scanCmd.Flags().StringSliceVar(&scanFlags.include, "include", nil, "Glob patterns a file must match to be scanned")
	scanCmd.Flags().StringSliceVar(&scanFlags.exclude, "exclude", nil, "Glob patterns excluding files from the scan")

	rootCmd.AddCommand(scanCmd)
}
