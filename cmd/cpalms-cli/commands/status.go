package commands

import (
	"fldoe-standards/services/standards/db"
	"fldoe-standards/services/standards/resume"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusMaxAttempts *int

func init() {
	statusMaxAttempts = statusCmd.Flags().Int("max-attempts", resume.DefaultCeiling, "The attempt ceiling used by scrape runs.")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reports scrape progress and the benchmarks that failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		qry := db.New(database)
		tracker := resume.NewTracker(database, resume.TrackerOptions{Ceiling: *statusMaxAttempts})

		benchmarks, err := qry.ListBenchmarks(ctx)
		if err != nil {
			return err
		}
		withoutUrl, err := qry.CountBenchmarksWithoutUrl(ctx)
		if err != nil {
			return err
		}
		remaining, err := tracker.Remaining(ctx)
		if err != nil {
			return err
		}
		counts, err := qry.CountStatuses(ctx)
		if err != nil {
			return err
		}

		overview := newTable()
		overview.SetTitle("Benchmarks")
		overview.AppendRow(table.Row{"Loaded", len(benchmarks)})
		overview.AppendRow(table.Row{"Without cpalms url", withoutUrl})
		overview.AppendRow(table.Row{"Left to scrape", remaining})
		for _, c := range counts {
			overview.AppendRow(table.Row{fmt.Sprintf("Status: %s", c.Status), c.Count})
		}
		overview.Render()

		statuses, err := qry.ListScrapeStatuses(ctx)
		if err != nil {
			return err
		}
		failed := newTable()
		failed.SetTitle("Failed benchmarks")
		failed.AppendHeader(table.Row{"Benchmark", "Attempts", "Exhausted", "Last attempt", "Error"})
		failedCount := 0
		for _, s := range statuses {
			if s.Status != db.STATUS_FAILED {
				continue
			}
			failedCount++
			failed.AppendRow(table.Row{
				s.BenchmarkID,
				s.AttemptCount,
				s.AttemptCount >= int64(tracker.Ceiling()),
				time.Unix(s.LastAttempt, 0).Format(time.DateTime),
				s.ErrorMessage,
			})
		}
		if failedCount > 0 {
			failed.Render()
		}
		return nil
	},
}
