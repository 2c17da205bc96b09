package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

var (
	gemsList    bool
	gemsTop     int
	gemsType    string
	gemsSegment string
	gemsExplain int64
)

var gemsCmd = &cobra.Command{
	Use:   "gems",
	Short: "Browse detected gems",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if gemsExplain > 0 {
			gem, err := db.GetGem(ctx, gemsExplain)
			if err != nil {
				return eris.Wrap(err, "gems explain")
			}
			if gem == nil {
				return eris.Errorf("gem %d not found", gemsExplain)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(gem)
		}

		filter := store.GemFilter{
			GemType: model.GemType(gemsType),
			Segment: gemsSegment,
		}
		if gemsTop > 0 {
			filter.Limit = gemsTop
		}

		gems, err := db.ListGems(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "gems list")
		}
		if len(gems) == 0 {
			fmt.Fprintln(os.Stderr, "No gems found.")
			return nil
		}

		formatGemsTable(os.Stdout, gems)
		return nil
	},
}

// formatGemsTable writes a tabular gem listing to w.
func formatGemsTable(out io.Writer, gems []model.Gem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tDOMAIN\tSCORE\tSTATUS\tSUMMARY")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t------\t-------")
	for _, g := range gems {
		summary := g.Explanation.Summary
		if len(summary) > 60 {
			summary = summary[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			g.ID, g.GemType, g.SenderDomain, g.Score, g.Status, summary)
	}
	_ = w.Flush()
}

func init() {
	gemsCmd.Flags().BoolVar(&gemsList, "list", false, "list all gems (default)")
	gemsCmd.Flags().IntVar(&gemsTop, "top", 0, "show only the N highest-scoring gems")
	gemsCmd.Flags().StringVar(&gemsType, "type", "", "filter by gem type")
	gemsCmd.Flags().StringVar(&gemsSegment, "segment", "", "filter by sender segment")
	gemsCmd.Flags().Int64Var(&gemsExplain, "explain", 0, "print the full explanation of one gem as JSON")
	rootCmd.AddCommand(gemsCmd)
}
