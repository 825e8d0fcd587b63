package cmd

import (
	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/modelcat/modelcat/config"
	"github.com/modelcat/modelcat/pipeline"
	"github.com/modelcat/modelcat/store"
)

var cleanFlags struct {
	outDir    string
	recursive bool
}

var cleanCmd = &cobra.Command{
	Use:   "clean [directory]",
	Short: "Remove records for vanished files and collapse duplicates",
	Long: `Clean compares stored records against the files currently on disk.
Records whose source file disappeared are removed, and when several files
share one content hash only the newest record is kept. Removed duplicates
are listed in duplicate_models.txt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceDir := "."
		if len(args) == 1 {
			sourceDir = args[0]
		}
		cfg := config.Config{
			SourceDir: sourceDir,
			OutputDir: cleanFlags.outDir,
			Recursive: cleanFlags.recursive,
		}
		if cfg.OutputDir == "" {
			cfg.OutputDir = cfg.SourceDir
		}
		cfg.ApplyDefaults()
		return runClean(cfg)
	},
}

func runClean(cfg config.Config) error {
	records, err := store.NewFSStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	lock, err := store.AcquireBatchLock(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	files, err := pipeline.DiscoverFiles(cfg)
	if err != nil {
		return err
	}

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

	cleaner := pipeline.NewCleaner(records, indexOrNil(index), ledger)
	report, err := cleaner.Clean(files)
	if err != nil {
		return err
	}

	formatted, err := clicky.Format(report)
	if err != nil {
		logger.Infof("Removed %d vanished and %d duplicate records", report.Vanished, report.Duplicates)
		return nil
	}
	logger.Infof("%s", formatted)
	return nil
}

func init() {
	cleanCmd.Flags().StringVar(&cleanFlags.outDir, "out-dir", "", "Output directory holding records (defaults to the source directory)")
	cleanCmd.Flags().BoolVarP(&cleanFlags.recursive, "recursive", "r", false, "Descend into subdirectories when matching files")

	rootCmd.AddCommand(cleanCmd)
}
