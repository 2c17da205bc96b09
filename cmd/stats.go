package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	statsByESP      bool
	statsByIndustry bool
	statsBySegment  bool
	statsGemSummary bool
)

// statsOverviewOrder fixes the display order of the overview counters.
var statsOverviewOrder = []struct {
	label string
	table string
}{
	{"Messages", "messages"},
	{"Threads", "threads"},
	{"Parsed metadata", "parsed_metadata"},
	{"Parsed content", "parsed_content"},
	{"Extracted entities", "extracted_entities"},
	{"Classifications", "ai_classification"},
	{"Sender profiles", "sender_profiles"},
	{"Relationships", "sender_relationships"},
	{"Segments", "sender_segments"},
	{"Gems", "gems"},
	{"Drafts", "engagement_drafts"},
	{"Pipeline runs", "pipeline_runs"},
	{"AI calls", "ai_audit"},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		switch {
		case statsByESP:
			counts, err := db.CountByESP(ctx)
			if err != nil {
				return eris.Wrap(err, "stats by esp")
			}
			formatCounts(os.Stdout, "ESP", counts)

		case statsByIndustry:
			counts, err := db.CountByIndustry(ctx)
			if err != nil {
				return eris.Wrap(err, "stats by industry")
			}
			formatCounts(os.Stdout, "INDUSTRY", counts)

		case statsBySegment:
			segs, err := db.ListAllSegments(ctx)
			if err != nil {
				return eris.Wrap(err, "stats by segment")
			}
			counts := make(map[string]int, 8)
			for _, s := range segs {
				counts[s.Segment]++
			}
			formatCounts(os.Stdout, "SEGMENT", counts)

		case statsGemSummary:
			summary, err := db.GemSummary(ctx)
			if err != nil {
				return eris.Wrap(err, "gem summary")
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "GEM_TYPE\tCOUNT\tAVG\tMAX")
			for _, s := range summary {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\t%d\n", s.GemType, s.Count, s.AvgScore, s.MaxScore)
			}
			_ = w.Flush()

		default:
			counts, err := db.Stats(ctx)
			if err != nil {
				return eris.Wrap(err, "stats")
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, row := range statsOverviewOrder {
				_, _ = fmt.Fprintf(w, "%s:\t%d\n", row.label, counts[row.table])
			}
			_ = w.Flush()
		}
		return nil
	},
}

// formatCounts writes a name/count table sorted by descending count.
func formatCounts(out io.Writer, header string, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tCOUNT\n", header)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	_ = w.Flush()
}

func init() {
	statsCmd.Flags().BoolVar(&statsByESP, "by-esp", false, "message counts per detected ESP")
	statsCmd.Flags().BoolVar(&statsByIndustry, "by-industry", false, "profile counts per classified industry")
	statsCmd.Flags().BoolVar(&statsBySegment, "by-segment", false, "domain counts per segment")
	statsCmd.Flags().BoolVar(&statsGemSummary, "gem-summary", false, "gem counts and score stats per type")
	rootCmd.AddCommand(statsCmd)
}
