package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/ingest"
)

var (
	ingestQuery  string
	ingestSync   bool
	ingestAppend bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Sync Gmail messages into the store",
	Long:  "Full sync fetches every message matching the query, skipping ones already stored. --sync runs an incremental history delta, falling back to a full scan when the cursor has expired. --append forces a full query scan on top of existing data.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		src, err := initGmail(ctx)
		if err != nil {
			return err
		}

		query := ingestQuery
		if query == "" {
			query = cfg.Gmail.DefaultQuery
		}

		engine := ingest.NewEngine(src, db)
		engine.Progress = func(done, total, stored int) {
			fmt.Printf("\rfetched %d/%d (%d new)", done, total, stored)
		}

		var stored int
		switch {
		case ingestSync:
			stored, err = engine.IncrementalSync(ctx)
		case ingestAppend:
			stored, err = engine.FullSync(ctx, query)
		default:
			stored, err = engine.Sync(ctx, query)
		}
		fmt.Println()
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		if err := engine.RebuildThreads(ctx); err != nil {
			return eris.Wrap(err, "rebuild threads")
		}

		zap.L().Info("ingest complete",
			zap.String("query", query),
			zap.Int("stored", stored),
		)
		fmt.Printf("Stored %d new messages.\n", stored)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestQuery, "query", "", "Gmail search query (default from config)")
	ingestCmd.Flags().BoolVar(&ingestSync, "sync", false, "incremental sync from the saved history cursor")
	ingestCmd.Flags().BoolVar(&ingestAppend, "append", false, "full query scan without consulting the history cursor")
	rootCmd.AddCommand(ingestCmd)
}
