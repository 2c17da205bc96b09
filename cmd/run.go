package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/ingest"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/pipeline"
)

var (
	runQuery     string
	runAllStages bool
	runCrew      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the processing pipeline end to end",
	Long:  "Executes metadata, content, entities, classify, profile, and segment in order. --query first syncs matching mail. --all-stages also generates engagement drafts at the end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runCrew {
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

		if runQuery != "" {
			src, err := initGmail(ctx)
			if err != nil {
				return err
			}
			engine := ingest.NewEngine(src, db)
			stored, err := engine.Sync(ctx, runQuery)
			if err != nil {
				return eris.Wrap(err, "ingest")
			}
			if err := engine.RebuildThreads(ctx); err != nil {
				return eris.Wrap(err, "rebuild threads")
			}
			fmt.Printf("Ingested %d new messages.\n", stored)
		}

		orch := newOrchestrator(db, provider)
		total, err := orch.RunAll(ctx, model.TriggerCLI)
		if err != nil {
			return err
		}
		fmt.Printf("Pipeline complete, %d items processed.\n", total)

		if runAllStages {
			run, err := orch.Execute(ctx, "engage", model.TriggerCLI, pipeline.StageOptions{})
			if err != nil {
				return eris.Wrap(err, "engage")
			}
			fmt.Printf("Generated %d drafts.\n", run.ItemsProcessed)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runQuery, "query", "", "sync mail matching this query before processing")
	runCmd.Flags().BoolVar(&runAllStages, "all-stages", false, "also generate engagement drafts")
	runCmd.Flags().BoolVar(&runCrew, "crew", false, "use the multi-agent pipeline (falls back to single provider)")
	rootCmd.AddCommand(runCmd)
}
