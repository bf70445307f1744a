package main

import (
	"github.com/spf13/cobra"

	"github.com/mmynk/tripledger/internal/config"
	"github.com/mmynk/tripledger/pkg/logging"
)

var (
	envFiles []string
	cfg      *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tripledger",
	Short: "Trip expense billing and reconciliation server",
	Long: `tripledger tracks shared trip expenses, issues invoices and receipts to
participants, and reconciles what was collected upfront against what was
actually paid.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(envFiles...); err != nil {
			return err
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (default .env)")
}
