package cmd

import (
	"fmt"
	"os"

	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	outputFile   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "modelcat",
	Short: "Catalog local model files against the Civitai registry",
	Long: `modelcat scans directories of SafeTensors and PyTorch checkpoint files,
fingerprints them by content hash, looks them up on Civitai and keeps a
local catalog of JSON records with browsable HTML pages.

Scans are incremental: unchanged models cost nothing on re-runs, and API
traffic is rate limited with randomized inter-model delays.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		clicky.UseGlobalTaskManager(clicky.Flags.TaskManagerOptions)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Flush the clicky task tree before exiting.
	exitCode := clicky.WaitForGlobalCompletionSilent()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.modelcat.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output-file", "o", "", "Write command output to a file instead of stdout")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&clicky.Flags.NoProgress, "no-progress", clicky.Flags.NoProgress, "Disable the live task progress display")
	rootCmd.PersistentFlags().IntVar(&clicky.Flags.MaxConcurrent, "max-concurrent", clicky.Flags.MaxConcurrent, "Maximum concurrent tasks")

	logger.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".modelcat")
	}

	viper.SetEnvPrefix("MODELCAT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
}
