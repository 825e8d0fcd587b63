package cmd

import (
	"github.com/spf13/cobra"

	"github.com/modelcat/modelcat/output"
	"github.com/modelcat/modelcat/store"
)

var missingCmd = &cobra.Command{
	Use:   "missing [directory]",
	Short: "Show models not found on Civitai",
	Long: `Missing prints the files whose hash lookup returned not-found, newest
first. Entries clear automatically when a later scan finds the model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		records, err := store.OpenFSStore(dir)
		if err != nil {
			return err
		}
		entries, err := records.LoadMissing()
		if err != nil {
			return err
		}
		out := output.NewOutputManager(outputFormat)
		out.SetOutputFile(outputFile)
		return out.Missing(entries)
	},
}

func init() {
	rootCmd.AddCommand(missingCmd)
}
