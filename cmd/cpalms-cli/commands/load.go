package commands

import (
	"context"
	"fldoe-standards/lib/benchmark"
	"fldoe-standards/services/standards/db"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/titanous/json5"
)

// BenchmarkEntry is one item of the benchmark list file.
type BenchmarkEntry struct {
	ID         string `json:"id"`
	GradeLevel string `json:"grade_level"`
	Definition string `json:"definition"`
	Subject    string `json:"subject"`
	CpalmsUrl  string `json:"cpalms_url"`
}

func readBenchmarkList(path string) ([]BenchmarkEntry, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []BenchmarkEntry
	err = json5.Unmarshal(contents, &entries)
	if err != nil {
		return nil, fmt.Errorf("decode benchmark list %s: %w", path, err)
	}
	return entries, nil
}

type loadCounts struct {
	Created        int
	AlreadyPresent int
	Skipped        int
}

func storeBenchmarks(ctx context.Context, qry *db.Queries, entries []BenchmarkEntry) (loadCounts, error) {
	var counts loadCounts
	for _, entry := range entries {
		if entry.ID == "" {
			slog.WarnContext(ctx, "skipping benchmark without id", "definition", entry.Definition)
			counts.Skipped++
			continue
		}
		if !benchmark.IsCode(entry.ID) {
			slog.WarnContext(ctx, "benchmark id does not look like a benchmark code", "benchmark", entry.ID)
		}
		if entry.CpalmsUrl == "" {
			slog.WarnContext(ctx, "benchmark has no cpalms url and will not be scraped", "benchmark", entry.ID)
		}
		if entry.Subject == "" {
			entry.Subject = "Mathematics"
		}

		n, err := qry.CreateBenchmark(ctx, db.CreateBenchmarkParams{
			ID:         entry.ID,
			GradeLevel: entry.GradeLevel,
			Definition: entry.Definition,
			Subject:    entry.Subject,
			CpalmsUrl:  entry.CpalmsUrl,
		})
		if err != nil {
			return counts, fmt.Errorf("store benchmark %s: %w", entry.ID, err)
		}
		if n > 0 {
			counts.Created++
		} else {
			counts.AlreadyPresent++
		}
	}
	return counts, nil
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load <benchmarks.json5>",
	Short: "Stores the benchmarks in a list file, benchmarks that were already loaded are left untouched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := readBenchmarkList(args[0])
		if err != nil {
			return err
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := cmd.Context()
		counts, err := storeBenchmarks(ctx, db.New(database), entries)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "loaded benchmarks",
			"read", len(entries),
			"created", counts.Created,
			"already_present", counts.AlreadyPresent,
			"skipped", counts.Skipped,
		)
		return nil
	},
}
