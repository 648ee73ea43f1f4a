package cmd

import (
	"fmt"
	"os"

	"github.com/jjenkins/factbase/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg         *config.Config
	logger      *logrus.Logger
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:   "factbase",
	Short: "Cross-source government data ingestion and sync",
	Long: `factbase ingests government data (Federal Register agencies and documents,
OPM PLUM appointee data and the congress-legislators dataset), links records
across sources and keeps them current with scheduled incremental syncs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.DefaultEnvFiles...)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Sync.Concurrency = concurrency
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = config.NewLogger(cfg.Log)
		return err
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", 4, "Records merged in parallel per sync run")
}
