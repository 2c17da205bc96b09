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
	classifyModel     string
	classifyBatchSize int
	classifyRetrain   bool
	classifyCrew      bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "AI-classify unclassified senders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if classifyBatchSize > 0 {
			cfg.AI.BatchSize = classifyBatchSize
		}
		if classifyCrew {
			zap.L().Warn("multi-agent mode is not available, using the single provider")
		}

		provider, err := newProvider(classifyModel)
		if err != nil {
			return err
		}

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		orch := newOrchestrator(db, provider)
		run, err := orch.Execute(ctx, "classify", model.TriggerCLI, pipeline.StageOptions{
			Retrain: classifyRetrain,
		})
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		fmt.Printf("Classified %d messages with %s (run %s)\n",
			run.ItemsProcessed, provider.Name()+":"+provider.Model(), run.ID)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyModel, "model", "", "provider:model tag (default from config)")
	classifyCmd.Flags().IntVar(&classifyBatchSize, "batch-size", 0, "messages per classification batch")
	classifyCmd.Flags().BoolVar(&classifyRetrain, "retrain", false, "append recent overrides to the prompt as corrections")
	classifyCmd.Flags().BoolVar(&classifyCrew, "crew", false, "use the multi-agent pipeline (falls back to single provider)")
	rootCmd.AddCommand(classifyCmd)
}
