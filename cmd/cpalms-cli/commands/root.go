package commands

import (
	"context"
	"database/sql"
	"fldoe-standards/lib/sqliteutil"
	"fldoe-standards/lib/telemetry"
	"fldoe-standards/services/standards/db"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var dbPath *string
var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "cpalms-cli",
	Short: "cpalms-cli scrapes instructional resources and access points for Florida math benchmarks from CPALMS.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	dbPath = rootCmd.PersistentFlags().String("db", "cpalms.db", "The sqlite database holding benchmarks, scraped records and scrape status.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages.")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func openDB() (*sql.DB, error) {
	return sqliteutil.OpenDB(db.Schema, *dbPath)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
