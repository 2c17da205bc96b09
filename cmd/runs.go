package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

var (
	runsStage  string
	runsStatus string
	runsLimit  int
	runsShow   string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if runsShow != "" {
			run, err := db.GetRun(ctx, runsShow)
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			if run == nil {
				return eris.Errorf("run %s not found", runsShow)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		runs, err := db.ListRuns(ctx, store.RunFilter{
			Stage:  runsStage,
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// formatRunsList writes a tabular run listing to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTAGE\tSTATUS\tITEMS\tTRIGGER\tSTARTED\tDURATION")
	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Stage,
			r.Status,
			r.ItemsProcessed,
			r.TriggeredBy,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().StringVar(&runsStage, "stage", "", "filter by stage name")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (pending, running, completed, failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max number of runs to display")
	runsCmd.Flags().StringVar(&runsShow, "show", "", "print one run as JSON by id")
	rootCmd.AddCommand(runsCmd)
}
