package commands

import (
	"context"
	"fldoe-standards/lib/scrapers/cpalms"
	"fldoe-standards/lib/sqliteutil"
	"fldoe-standards/lib/telemetry"
	"fldoe-standards/lib/testutil"
	"fldoe-standards/services/standards/db"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const benchmarkList = `[
	// kindergarten
	{
		id: "MA.K.NSO.1.1",
		grade_level: "K",
		definition: "Given a group of up to 20 objects, count the number of objects in that group.",
		cpalms_url: "https://www.cpalms.org/PreviewStandard/Preview/15236",
	},
	{
		id: "MA.K.NSO.1.2",
		grade_level: "K",
		definition: "Given a number from 0 to 20, count out that many objects.",
		subject: "Mathematics",
		cpalms_url: "",
	},
]`

func writeFile(t testing.TB, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestReadBenchmarkList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "benchmarks.json5", benchmarkList)
	entries, err := readBenchmarkList(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "MA.K.NSO.1.1", entries[0].ID)
	require.Equal(t, "https://www.cpalms.org/PreviewStandard/Preview/15236", entries[0].CpalmsUrl)
	require.Equal(t, "", entries[0].Subject)
}

func TestLoadCommand(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cpalms-cli")
	defer cleanup()

	dir := t.TempDir()
	list := writeFile(t, dir, "benchmarks.json5", benchmarkList)
	dbFile := filepath.Join(dir, "cpalms.db")

	for i := 0; i < 2; i++ {
		rootCmd.SetArgs([]string{"--db", dbFile, "load", list})
		require.NoError(t, ExecuteContext(context.Background()))
	}

	database, err := sqliteutil.OpenDB(db.Schema, dbFile)
	require.NoError(t, err)
	defer database.Close()

	benchmarks, err := db.New(database).ListBenchmarks(context.Background())
	require.NoError(t, err)
	require.Len(t, benchmarks, 2)
	require.Equal(t, "Mathematics", benchmarks[0].Subject)

	withoutUrl, err := db.New(database).CountBenchmarksWithoutUrl(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, withoutUrl)
}

func TestStoreBenchmarksCounts(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "cpalms-cli", DbSchema: db.Schema})
	qry := db.New(res.DB)
	ctx := context.Background()

	entries := []BenchmarkEntry{
		{ID: "MA.K.NSO.1.1", CpalmsUrl: "https://www.cpalms.org/PreviewStandard/Preview/15236"},
		{ID: "", Definition: "row without a code"},
		{ID: "MA.K.NSO.1.2"},
	}
	counts, err := storeBenchmarks(ctx, qry, entries)
	require.NoError(t, err)
	require.Equal(t, loadCounts{Created: 2, Skipped: 1}, counts)

	counts, err = storeBenchmarks(ctx, qry, entries)
	require.NoError(t, err)
	require.Equal(t, loadCounts{AlreadyPresent: 2, Skipped: 1}, counts)
}

func TestParseStartFrom(t *testing.T) {
	code, err := parseStartFrom(" ma-k-nso-1-2 ")
	require.NoError(t, err)
	require.Equal(t, "MA.K.NSO.1.2", code)

	code, err = parseStartFrom("")
	require.NoError(t, err)
	require.Equal(t, "", code)

	_, err = parseStartFrom("kindergarten")
	require.Error(t, err)
}

func TestParseResourceTypes(t *testing.T) {
	types, err := parseResourceTypes([]string{"lesson plan", "Formative Assessment"})
	require.NoError(t, err)
	require.Equal(t, []cpalms.ResourceType{cpalms.LessonPlan, cpalms.FormativeAssessment}, types)

	types, err = parseResourceTypes([]string{"all"})
	require.NoError(t, err)
	require.Nil(t, types)

	_, err = parseResourceTypes([]string{"Worksheet"})
	require.Error(t, err)
}

func TestResolveScrapeConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ScrapeConfigFile, `{ delay_seconds: 2, state_file: "state/ledger.json" }`)
	writeFile(t, dir, "cpalms.local.json5", `{ max_attempts: 5 }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := resolveScrapeConfig(scrapeCmd)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, seconds(cfg.DelaySeconds))
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, "state/ledger.json", cfg.StateFile)
	require.Equal(t, []string{"Lesson Plan", "Formative Assessment"}, cfg.ResourceTypes)

	require.NoError(t, scrapeCmd.Flags().Set("delay", "0s"))
	cfg, err = resolveScrapeConfig(scrapeCmd)
	require.NoError(t, err)
	require.Equal(t, float64(0), cfg.DelaySeconds)
}
