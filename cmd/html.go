package cmd

import (
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/modelcat/modelcat/htmlgen"
	"github.com/modelcat/modelcat/store"
)

var htmlFlags struct {
	rebuildIndex bool
}

var htmlCmd = &cobra.Command{
	Use:   "html [directory]",
	Short: "Regenerate all HTML pages from stored records",
	Long: `Html rewrites every per-model page and the overview page from the
JSON records already on disk. No network access is performed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runHTML(dir)
	},
}

func runHTML(dir string) error {
	records, err := store.OpenFSStore(dir)
	if err != nil {
		return err
	}

	generator := htmlgen.New(records, versionString())
	count, err := generator.RegenerateAll()
	if err != nil {
		return err
	}
	logger.Infof("Regenerated %d model pages", count)

	index, err := store.OpenIndex(dir)
	if err != nil {
		logger.Warnf("Catalog index unavailable, skipping overview page: %v", err)
		return nil
	}
	defer closeIndex(index)

	if htmlFlags.rebuildIndex {
		if err := index.Rebuild(records); err != nil {
			return err
		}
	}
	entries, err := index.List(store.ListFilter{})
	if err != nil {
		return err
	}
	return generator.Overview(entries)
}

func init() {
	htmlCmd.Flags().BoolVar(&htmlFlags.rebuildIndex, "rebuild-index", false, "Rebuild the catalog index from the JSON records first")

	rootCmd.AddCommand(htmlCmd)
}
