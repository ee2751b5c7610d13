package commands

import (
	"fldoe-standards/services/standards/resume"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var exportMaxAttempts *int

func init() {
	exportMaxAttempts = exportCmd.Flags().Int("max-attempts", resume.DefaultCeiling, "The attempt ceiling recorded in the export.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <state.json>",
	Short: "Writes the scrape ledger to a json file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return fmt.Errorf("an output path is required")
		}
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		tracker := resume.NewTracker(database, resume.TrackerOptions{
			Ceiling:   *exportMaxAttempts,
			StateFile: args[0],
		})
		err = tracker.Export(cmd.Context())
		if err != nil {
			return err
		}
		slog.InfoContext(cmd.Context(), "exported scrape ledger", "path", args[0])
		return nil
	},
}
