package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

var (
	overrideSender  string
	overrideMessage string
	overrideField   string
	overrideValue   string

	overridesListFlag  bool
	overridesStatsFlag bool
	overridesDeleteID  int64
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Correct an AI-classified field",
	Long:  "Records a correction at sender scope (--sender) or message scope (--message). Message-scope overrides outrank sender-scope for the same field, and future classification runs pre-fill from them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if (overrideSender == "") == (overrideMessage == "") {
			return eris.New("exactly one of --sender or --message is required")
		}

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		o := &model.Override{
			SenderDomain:   overrideSender,
			MessageID:      overrideMessage,
			FieldName:      overrideField,
			CorrectedValue: overrideValue,
			Scope:          model.ScopeSender,
		}
		if overrideMessage != "" {
			o.Scope = model.ScopeMessage
			if cls, err := db.GetClassification(ctx, overrideMessage); err == nil && cls != nil {
				o.OriginalValue = classifiedValue(cls, overrideField)
			}
		}

		id, err := db.InsertOverride(ctx, o)
		if err != nil {
			return eris.Wrap(err, "insert override")
		}

		fmt.Printf("Override %d recorded: %s=%s (%s scope)\n", id, o.FieldName, o.CorrectedValue, o.Scope)
		return nil
	},
}

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "List overrides or summarize override pressure",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if overridesDeleteID > 0 {
			if err := db.DeleteOverride(ctx, overridesDeleteID); err != nil {
				return eris.Wrap(err, "delete override")
			}
			fmt.Printf("Override %d deleted.\n", overridesDeleteID)
			return nil
		}

		if overridesStatsFlag {
			stats, err := db.OverrideStats(ctx)
			if err != nil {
				return eris.Wrap(err, "override stats")
			}
			formatOverrideStats(os.Stdout, stats)
			return nil
		}

		overrides, err := db.ListOverrides(ctx)
		if err != nil {
			return eris.Wrap(err, "list overrides")
		}
		if len(overrides) == 0 {
			fmt.Fprintln(os.Stderr, "No overrides recorded.")
			return nil
		}
		formatOverridesList(os.Stdout, overrides)
		return nil
	},
}

// classifiedValue pulls the named field off a classification row for the
// override's original-value column.
func classifiedValue(cls *model.Classification, field string) string {
	switch field {
	case "sender_intent":
		return string(cls.SenderIntent)
	case "industry":
		return cls.Industry
	case "company_size_estimate":
		return cls.CompanySize
	case "product_type":
		return cls.ProductType
	case "target_audience":
		return cls.TargetAudience
	case "marketing_sophistication":
		return fmt.Sprintf("%d", cls.MarketingSophistication)
	}
	return ""
}

func formatOverridesList(out io.Writer, overrides []model.Override) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCOPE\tTARGET\tFIELD\tCORRECTED\tCREATED")
	for _, o := range overrides {
		target := o.SenderDomain
		if o.Scope == model.ScopeMessage {
			target = o.MessageID
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Scope, target, o.FieldName, o.CorrectedValue,
			o.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func formatOverrideStats(out io.Writer, stats map[string]store.OverrideFieldStats) {
	fields := make([]string, 0, len(stats))
	for f := range stats {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tOVERRIDES\tCLASSIFIED\tRATE\tNEEDS_TUNING")
	for _, f := range fields {
		s := stats[f]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%v\n",
			f, s.TotalOverrides, s.TotalClassifications, s.OverrideRate, s.NeedsTuning)
	}
	_ = w.Flush()
}

func init() {
	overrideCmd.Flags().StringVar(&overrideSender, "sender", "", "sender domain (sender-scope override)")
	overrideCmd.Flags().StringVar(&overrideMessage, "message", "", "message id (message-scope override)")
	overrideCmd.Flags().StringVar(&overrideField, "field", "", "classified field to correct (required)")
	overrideCmd.Flags().StringVar(&overrideValue, "value", "", "corrected value (required)")
	_ = overrideCmd.MarkFlagRequired("field")
	_ = overrideCmd.MarkFlagRequired("value")

	overridesCmd.Flags().BoolVar(&overridesListFlag, "list", false, "list all overrides (default)")
	overridesCmd.Flags().BoolVar(&overridesStatsFlag, "stats", false, "per-field override rates")
	overridesCmd.Flags().Int64Var(&overridesDeleteID, "delete", 0, "delete the override with this id")

	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(overridesCmd)
}
