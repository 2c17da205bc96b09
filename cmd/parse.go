package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/pipeline"
)

var parseStage string

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Run a parsing stage over unprocessed messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch parseStage {
		case "metadata", "content", "entities":
		default:
			return eris.Errorf("unknown parse stage %q (metadata|content|entities)", parseStage)
		}

		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		orch := newOrchestrator(db, nil)
		run, err := orch.Execute(ctx, parseStage, model.TriggerCLI, pipeline.StageOptions{})
		if err != nil {
			return eris.Wrapf(err, "parse %s", parseStage)
		}

		fmt.Printf("%s: processed %d messages (run %s)\n", parseStage, run.ItemsProcessed, run.ID)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseStage, "stage", "", "stage to run: metadata, content, or entities (required)")
	_ = parseCmd.MarkFlagRequired("stage")
	rootCmd.AddCommand(parseCmd)
}
