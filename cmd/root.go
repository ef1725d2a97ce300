package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "srcload",
	Short: "Molecular source resolution and collapsing loader",
	Long:  "Resolves the molecular source of incoming sequence records against MGD, collapses equivalent anonymous sources, and reconciles existing associations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
