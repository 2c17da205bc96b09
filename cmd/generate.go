package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/pipeline"
)

var (
	generateGemID    int64
	generateStrategy string
	generateTop      int
	generateAll      bool
	generateCrew     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft engagement messages for gems",
	Long:  "Targets one gem (--gem, bypasses the daily cap), the top N gems of a strategy (--strategy --top), or every gem routed to a strategy (--strategy --all).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if generateGemID == 0 && generateStrategy == "" {
			return eris.New("either --gem or --strategy is required")
		}
		if generateCrew {
			zap.L().Warn("multi-agent mode is not available, using the single provider")
		}

		provider, err := newProvider("")
		if err != nil {
			return err
		}

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		opts := pipeline.StageOptions{
			GemID:    generateGemID,
			Strategy: generateStrategy,
		}
		if !generateAll {
			opts.TopN = generateTop
		}

		orch := newOrchestrator(db, provider)
		run, err := orch.Execute(ctx, "engage", model.TriggerCLI, opts)
		if err != nil {
			return eris.Wrap(err, "generate")
		}

		fmt.Printf("Generated %d drafts (run %s)\n", run.ItemsProcessed, run.ID)
		return nil
	},
}

func init() {
	generateCmd.Flags().Int64Var(&generateGemID, "gem", 0, "draft for one gem id")
	generateCmd.Flags().StringVar(&generateStrategy, "strategy", "", "draft only gems routed to this strategy")
	generateCmd.Flags().IntVar(&generateTop, "top", 5, "limit to the N highest-scoring gems")
	generateCmd.Flags().BoolVar(&generateAll, "all", false, "draft every matching gem (still subject to the daily cap)")
	generateCmd.Flags().BoolVar(&generateCrew, "crew", false, "use the multi-agent pipeline (falls back to single provider)")
	rootCmd.AddCommand(generateCmd)
}
