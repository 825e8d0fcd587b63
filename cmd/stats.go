package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelcat/modelcat/output"
	"github.com/modelcat/modelcat/store"
)

var statsFlags struct {
	limit int
}

var statsCmd = &cobra.Command{
	Use:   "stats [directory]",
	Short: "Show recent scan history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if _, err := store.OpenFSStore(dir); err != nil {
			return err
		}
		history, err := store.OpenHistory(dir)
		if err != nil {
			return err
		}
		defer history.Close()

		records, err := history.Recent(statsFlags.limit)
		if err != nil {
			return err
		}

		if outputFormat == "table" && outputFile == "" {
			absDir, err := filepath.Abs(dir)
			if err != nil {
				absDir = dir
			}
			if len(records) == 0 {
				fmt.Printf("No scan history found for %s\n", color.CyanString(absDir))
				return nil
			}
			fmt.Printf("Scan history for %s\n", color.CyanString(absDir))
		}

		out := output.NewOutputManager(outputFormat)
		out.SetOutputFile(outputFile)
		return out.History(records)
	},
}

func init() {
	statsCmd.Flags().IntVarP(&statsFlags.limit, "limit", "n", 20, "Number of scans to show")

	rootCmd.AddCommand(statsCmd)
}
