package commands

import (
	"fldoe-standards/lib/benchmark"
	"fldoe-standards/lib/scrapers/cpalms"
	"fldoe-standards/services/standards/db"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var lookupFlags struct {
	resourceType *string
	threshold    *float64
}

func init() {
	lookupFlags.resourceType = lookupCmd.Flags().String("type", "", "Only show resources with this label.")
	lookupFlags.threshold = lookupCmd.Flags().Float64("threshold", benchmark.DefaultThreshold, "Minimum similarity for a fuzzy match.")
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <benchmark code> [--type \"Lesson Plan\"]",
	Short: "Shows a benchmark with its scraped resources and access points, close matches are suggested for unknown codes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		qry := db.New(database)

		benchmarks, err := qry.ListBenchmarks(ctx)
		if err != nil {
			return err
		}
		codes := make([]string, len(benchmarks))
		for i, b := range benchmarks {
			codes[i] = b.ID
		}

		match, err := benchmark.Lookup(args[0], codes, *lookupFlags.threshold)
		if err != nil {
			return err
		}
		if !match.Exact {
			fmt.Printf("Did you mean %s? (similarity %.2f)\n", match.Code, match.Similarity)
		}

		b, err := qry.GetBenchmark(ctx, match.Code)
		if err != nil {
			return err
		}

		var resources []db.Resource
		if *lookupFlags.resourceType != "" {
			t, ok := cpalms.ParseResourceType(*lookupFlags.resourceType)
			if !ok {
				return fmt.Errorf("unknown resource type '%s'", *lookupFlags.resourceType)
			}
			resources, err = qry.ListResourcesByType(ctx, db.ListResourcesByTypeParams{
				BenchmarkID:  b.ID,
				ResourceType: string(t),
			})
		} else {
			resources, err = qry.ListResources(ctx, b.ID)
		}
		if err != nil {
			return err
		}
		accessPoints, err := qry.ListAccessPoints(ctx, b.ID)
		if err != nil {
			return err
		}

		info := newTable()
		info.SetTitle(b.ID)
		info.AppendRow(table.Row{"Subject", b.Subject})
		info.AppendRow(table.Row{"Grade", b.GradeLevel})
		info.AppendRow(table.Row{"Definition", b.Definition})
		info.AppendRow(table.Row{"CPALMS", b.CpalmsUrl})
		info.Render()

		resourceTable := newTable()
		resourceTable.SetTitle("Resources")
		resourceTable.AppendHeader(table.Row{"Type", "Title", "Url"})
		for _, r := range resources {
			resourceTable.AppendRow(table.Row{r.ResourceType, r.Title, r.Url})
		}
		resourceTable.Render()

		accessPointTable := newTable()
		accessPointTable.SetTitle("Access points")
		accessPointTable.AppendHeader(table.Row{"Id", "Description"})
		for _, ap := range accessPoints {
			accessPointTable.AppendRow(table.Row{ap.AccessPointID, ap.Description})
		}
		accessPointTable.Render()
		return nil
	},
}
