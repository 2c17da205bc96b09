package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gemsieve/internal/store"
)

var (
	dbReset   bool
	dbMigrate bool
	dbStats   bool
	dbForce   bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		switch {
		case dbReset:
			if !dbForce && !confirm("This drops every table. Continue? [y/N] ") {
				fmt.Println("Aborted.")
				return nil
			}
			db, err := store.Open(cfg.Storage.SQLitePath, cfg.Storage.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Reset(ctx); err != nil {
				return eris.Wrap(err, "db reset")
			}
			if err := db.Migrate(ctx); err != nil {
				return eris.Wrap(err, "db migrate")
			}
			fmt.Println("Database reset.")

		case dbMigrate:
			db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Println("Migrations applied.")

		case dbStats:
			db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			counts, err := db.Stats(ctx)
			if err != nil {
				return eris.Wrap(err, "db stats")
			}
			formatCounts(os.Stdout, "TABLE", counts)

		default:
			return eris.New("one of --reset, --migrate, or --stats is required")
		}
		return nil
	},
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	dbCmd.Flags().BoolVar(&dbReset, "reset", false, "drop and recreate every table")
	dbCmd.Flags().BoolVar(&dbMigrate, "migrate", false, "apply pending migrations")
	dbCmd.Flags().BoolVar(&dbStats, "stats", false, "per-table row counts")
	dbCmd.Flags().BoolVar(&dbForce, "force", false, "skip the reset confirmation prompt")
	rootCmd.AddCommand(dbCmd)
}
