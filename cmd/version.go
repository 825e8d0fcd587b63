package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getVersionInfo func() (version, commit, date string, dirty bool)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionString())
	},
}

// SetVersionInfo wires the version function from the main package.
func SetVersionInfo(fn func() (string, string, string, bool)) {
	getVersionInfo = fn
}

func versionString() string {
	if getVersionInfo == nil {
		return "modelcat version dev (commit: unknown, built: unknown)"
	}
	version, commit, date, isDirty := getVersionInfo()
	status := "clean"
	if isDirty {
		status = "dirty"
	}
	return fmt.Sprintf("modelcat version %s (commit: %s, built: %s, %s)", version, commit, date, status)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
