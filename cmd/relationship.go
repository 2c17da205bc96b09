package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/relationship"
)

var (
	relSender   string
	relType     string
	relNote     string
	relSuppress bool

	relsList       bool
	relsType       string
	relsAutoDetect bool
	relsApply      bool
	relsImportFile string
)

var relationshipCmd = &cobra.Command{
	Use:   "relationship",
	Short: "Assign a relationship to a sender domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt := model.RelationshipType(relType)
		if !rt.Valid() {
			return eris.Errorf("unknown relationship type %q", relType)
		}

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		rel := &model.SenderRelationship{
			SenderDomain: relSender,
			Type:         rt,
			Note:         relNote,
			SuppressGems: relSuppress,
			Source:       model.RelSourceManual,
			Confidence:   1.0,
		}
		if err := db.UpsertRelationship(ctx, rel); err != nil {
			return eris.Wrap(err, "upsert relationship")
		}

		fmt.Printf("%s -> %s (manual)\n", relSender, rt)
		return nil
	},
}

var relationshipsCmd = &cobra.Command{
	Use:   "relationships",
	Short: "List, auto-detect, or import sender relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if relsImportFile != "" {
			n, err := relationship.ImportYAML(ctx, db, relsImportFile)
			if err != nil {
				return eris.Wrap(err, "import relationships")
			}
			fmt.Printf("Imported %d relationships.\n", n)
			return nil
		}

		if relsAutoDetect {
			known, err := relationship.LoadKnownEntities(cfg.KnownEntitiesFile)
			if err != nil {
				zap.L().Warn("known entities not loaded", zap.Error(err))
			}

			det := relationship.NewDetector(db, known)
			proposals, err := det.Detect(ctx)
			if err != nil {
				return eris.Wrap(err, "auto-detect")
			}
			formatProposals(os.Stdout, proposals)

			if relsApply {
				applied, err := det.Apply(ctx, proposals)
				if err != nil {
					return eris.Wrap(err, "apply proposals")
				}
				fmt.Printf("Applied %d of %d proposals.\n", applied, len(proposals))
			} else if len(proposals) > 0 {
				fmt.Println("Re-run with --apply to save these.")
			}
			return nil
		}

		rels, err := db.ListRelationships(ctx, model.RelationshipType(relsType))
		if err != nil {
			return eris.Wrap(err, "list relationships")
		}
		if len(rels) == 0 {
			fmt.Fprintln(os.Stderr, "No relationships recorded.")
			return nil
		}
		formatRelationships(os.Stdout, rels)
		return nil
	},
}

func formatRelationships(out io.Writer, rels []model.SenderRelationship) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOMAIN\tTYPE\tSOURCE\tCONF\tSUPPRESS\tNOTE")
	for _, r := range rels {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%v\t%s\n",
			r.SenderDomain, r.Type, r.Source, r.Confidence, r.SuppressGems, r.Note)
	}
	_ = w.Flush()
}

func formatProposals(out io.Writer, proposals []relationship.Proposal) {
	if len(proposals) == 0 {
		fmt.Fprintln(out, "No relationship proposals.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOMAIN\tPROPOSED\tCONF\tSIGNALS")
	for _, p := range proposals {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\n",
			p.SenderDomain, p.Type, p.Confidence, len(p.Signals))
	}
	_ = w.Flush()
}

func init() {
	relationshipCmd.Flags().StringVar(&relSender, "sender", "", "sender domain (required)")
	relationshipCmd.Flags().StringVar(&relType, "type", "", "relationship type (required)")
	relationshipCmd.Flags().StringVar(&relNote, "note", "", "free-form note")
	relationshipCmd.Flags().BoolVar(&relSuppress, "suppress", false, "suppress gem detection for this domain")
	_ = relationshipCmd.MarkFlagRequired("sender")
	_ = relationshipCmd.MarkFlagRequired("type")

	relationshipsCmd.Flags().BoolVar(&relsList, "list", false, "list relationships (default)")
	relationshipsCmd.Flags().StringVar(&relsType, "type", "", "filter the listing by type")
	relationshipsCmd.Flags().BoolVar(&relsAutoDetect, "auto-detect", false, "scan profiles and propose relationships")
	relationshipsCmd.Flags().BoolVar(&relsApply, "apply", false, "save auto-detected proposals (never overwrites manual rows)")
	relationshipsCmd.Flags().StringVar(&relsImportFile, "import", "", "import relationships from a YAML file")

	rootCmd.AddCommand(relationshipCmd)
	rootCmd.AddCommand(relationshipsCmd)
}
