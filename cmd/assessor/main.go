package main

import (
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-assessment/internal/config"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "assessor",
		Short: "Conversational career assessment engine",
		Long: `assessor walks a user through five psychometric inventories in a
free-form conversation and ends with a career recommendation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			logger = logging.New(cfg.Log.Level, cfg.Log.Pretty)
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default ./assessor.yaml)")
	rootCmd.AddCommand(serveCmd, mcpCmd, chatCmd)
}
