package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gemsieve",
	Short: "Mine buried business opportunities out of a mailbox",
	Long:  "Syncs Gmail into a local store, parses and classifies every sender, builds per-domain profiles, and surfaces typed opportunity gems with ready-to-send engagement drafts.",
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
