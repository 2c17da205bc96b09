package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/export"
	"github.com/sells-group/gemsieve/pkg/notion"
)

var (
	exportGems       bool
	exportAll        bool
	exportSegment    string
	exportFormat     string
	exportOutput     string
	exportNotion     bool
	exportSalesforce bool
	exportMinScore   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export gems and profiles to files, Notion, or Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if exportNotion {
			if cfg.Notion.Token == "" || cfg.Notion.GemsDB == "" {
				return eris.New("notion token and gems_db must be configured")
			}
			client := notion.NewClient(cfg.Notion.Token)
			exporter := export.NewNotionExporter(client, cfg.Notion.GemsDB)
			n, err := exporter.Export(ctx, db, exportMinScore)
			if err != nil {
				return eris.Wrap(err, "notion export")
			}
			fmt.Printf("Exported %d gems to Notion.\n", n)
			return nil
		}

		if exportSalesforce {
			client, err := initSalesforce()
			if err != nil {
				return err
			}
			exporter := export.NewSalesforceExporter(client)
			n, err := exporter.Export(ctx, db, exportMinScore)
			if err != nil {
				return eris.Wrap(err, "salesforce export")
			}
			fmt.Printf("Exported %d leads to Salesforce.\n", n)
			return nil
		}

		var path string
		switch {
		case exportSegment != "":
			path, err = export.Segment(ctx, db, exportSegment, exportOutput)
		case exportAll:
			path, err = export.Profiles(ctx, db, exportOutput, exportFormat)
		default:
			path, err = export.Gems(ctx, db, exportOutput)
		}
		if err != nil {
			return eris.Wrap(err, "export")
		}

		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportGems, "gems", false, "export gems (default)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export all sender profiles")
	exportCmd.Flags().StringVar(&exportSegment, "segment", "", "export one segment's members")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or excel")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (default derived from target)")
	exportCmd.Flags().BoolVar(&exportNotion, "notion", false, "export gems to the configured Notion database")
	exportCmd.Flags().BoolVar(&exportSalesforce, "salesforce", false, "export gems as Salesforce leads")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 40, "minimum gem score for notion/salesforce export")
	rootCmd.AddCommand(exportCmd)
}
