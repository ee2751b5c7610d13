package commands

import (
	"fldoe-standards/services/standards/resume"
	"log/slog"

	"github.com/spf13/cobra"
)

var requeueFlags struct {
	maxAttempts *int
	stateFile   *string
}

func init() {
	requeueFlags.maxAttempts = requeueCmd.Flags().Int("max-attempts", resume.DefaultCeiling, "The attempt ceiling used by scrape runs.")
	requeueFlags.stateFile = requeueCmd.Flags().String("state-file", "scrape_state.json", "The state file to refresh, empty disables the export.")
	rootCmd.AddCommand(requeueCmd)
}

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Makes failed benchmarks that still have attempts left pending again.",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		tracker := resume.NewTracker(database, resume.TrackerOptions{
			Ceiling:   *requeueFlags.maxAttempts,
			StateFile: *requeueFlags.stateFile,
		})
		n, err := tracker.Requeue(cmd.Context())
		if err != nil {
			return err
		}
		slog.InfoContext(cmd.Context(), "requeued benchmarks", "count", n)
		return nil
	},
}
