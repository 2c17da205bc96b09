package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/pipeline"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build sender profiles and detect gems",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		orch := newOrchestrator(db, nil)
		run, err := orch.Execute(ctx, "profile", model.TriggerCLI, pipeline.StageOptions{})
		if err != nil {
			return eris.Wrap(err, "profile")
		}

		fmt.Printf("Profiled and detected across %d items (run %s)\n", run.ItemsProcessed, run.ID)
		return nil
	},
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Assign segments and score gems",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		orch := newOrchestrator(db, nil)
		run, err := orch.Execute(ctx, "segment", model.TriggerCLI, pipeline.StageOptions{})
		if err != nil {
			return eris.Wrap(err, "segment")
		}

		fmt.Printf("Segmented and scored %d items (run %s)\n", run.ItemsProcessed, run.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(segmentCmd)
}
