package cmd

import (
	"github.com/spf13/cobra"

	"github.com/modelcat/modelcat/output"
	"github.com/modelcat/modelcat/store"
)

var listFlags struct {
	modelType string
	tag       string
	rebuild   bool
}

var listCmd = &cobra.Command{
	Use:   "list [directory]",
	Short: "List cataloged models",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runList(dir)
	},
}

func runList(dir string) error {
	records, err := store.OpenFSStore(dir)
	if err != nil {
		return err
	}

	index, err := store.OpenIndex(dir)
	if err != nil {
		return err
	}
	defer closeIndex(index)

	if listFlags.rebuild {
		if err := index.Rebuild(records); err != nil {
			return err
		}
	}

	entries, err := index.List(store.ListFilter{
		Type: listFlags.modelType,
		Tag:  listFlags.tag,
	})
	if err != nil {
		return err
	}

	out := output.NewOutputManager(outputFormat)
	out.SetOutputFile(outputFile)
	return out.Catalog(entries)
}

func init() {
	listCmd.Flags().StringVar(&listFlags.modelType, "type", "", "Only list models of this type (e.g. LORA, Checkpoint)")
	listCmd.Flags().StringVar(&listFlags.tag, "tag", "", "Only list models carrying this tag")
	listCmd.Flags().BoolVar(&listFlags.rebuild, "rebuild", false, "Rebuild the catalog index from the JSON records first")

	rootCmd.AddCommand(listCmd)
}
