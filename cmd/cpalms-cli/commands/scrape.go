package commands

import (
	"context"
	"errors"
	"fldoe-standards/lib/benchmark"
	"fldoe-standards/lib/configutil"
	"fldoe-standards/lib/scrapers/cpalms"
	"fldoe-standards/lib/telemetry"
	"fldoe-standards/services/standards/crawler"
	"fldoe-standards/services/standards/resume"
	"fmt"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const ScrapeConfigFile = "cpalms.json5"

// ScrapeConfig is read from cpalms.json5 (and cpalms.local.json5), flags take priority.
type ScrapeConfig struct {
	DelaySeconds      float64  `json:"delay_seconds"`
	MaxAttempts       int      `json:"max_attempts"`
	StateFile         string   `json:"state_file"`
	ResourceTypes     []string `json:"resource_types"`
	UserAgent         string   `json:"user_agent"`
	TimeoutSeconds    float64  `json:"timeout_seconds"`
	CloudflareBypass  bool     `json:"cloudflare_bypass"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	DumpDir           string   `json:"dump_dir"`
	PerfStats         bool     `json:"perf_stats"`
}

func defaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		DelaySeconds:      crawler.DefaultDelay.Seconds(),
		MaxAttempts:       resume.DefaultCeiling,
		StateFile:         "scrape_state.json",
		ResourceTypes:     []string{string(cpalms.LessonPlan), string(cpalms.FormativeAssessment)},
		TimeoutSeconds:    30,
		RequestsPerSecond: 1,
	}
}

func parseResourceTypes(labels []string) ([]cpalms.ResourceType, error) {
	var types []cpalms.ResourceType
	for _, label := range labels {
		if label == "all" {
			return nil, nil
		}
		t, ok := cpalms.ParseResourceType(label)
		if !ok {
			return nil, fmt.Errorf("unknown resource type '%s'", label)
		}
		types = append(types, t)
	}
	return types, nil
}

// parseStartFrom normalizes the --start-from code, empty means no starting point.
func parseStartFrom(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	code, ok := benchmark.NormalizeCode(raw)
	if !ok {
		return "", fmt.Errorf("--start-from: '%s' is not a benchmark code", raw)
	}
	return code, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

var scrapeFlags struct {
	delay         *time.Duration
	maxAttempts   *int
	limit         *int
	stateFile     *string
	resourceTypes *[]string
	dumpDir       *string
	startFrom     *string
}

func init() {
	flags := scrapeCmd.Flags()
	scrapeFlags.delay = flags.Duration("delay", crawler.DefaultDelay, "Wait between consecutive benchmarks.")
	scrapeFlags.maxAttempts = flags.Int("max-attempts", resume.DefaultCeiling, "Attempts allowed per benchmark across all runs.")
	scrapeFlags.limit = flags.Int("limit", 0, "Maximum benchmarks to process in this run, 0 means no limit.")
	scrapeFlags.stateFile = flags.String("state-file", "scrape_state.json", "Where to export the scrape ledger after every change, empty disables the export.")
	scrapeFlags.resourceTypes = flags.StringSlice("resource-types", nil, "Resource labels to keep, 'all' keeps every label. (default \"Lesson Plan,Formative Assessment\")")
	scrapeFlags.dumpDir = flags.String("dump-dir", "", "Write every http exchange to this directory.")
	scrapeFlags.startFrom = flags.String("start-from", "", "Skip pending benchmarks whose code sorts before this one.")
	rootCmd.AddCommand(scrapeCmd)
}

// resolveScrapeConfig layers defaults, the config file and explicitly set flags.
func resolveScrapeConfig(cmd *cobra.Command) (ScrapeConfig, error) {
	cfg, err := configutil.ReadConfigOr(ScrapeConfigFile, defaultScrapeConfig())
	if err != nil {
		return ScrapeConfig{}, fmt.Errorf("read %s: %w", ScrapeConfigFile, err)
	}

	flags := cmd.Flags()
	if flags.Changed("delay") {
		cfg.DelaySeconds = scrapeFlags.delay.Seconds()
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = *scrapeFlags.maxAttempts
	}
	if flags.Changed("state-file") {
		cfg.StateFile = *scrapeFlags.stateFile
	}
	if flags.Changed("resource-types") {
		cfg.ResourceTypes = *scrapeFlags.resourceTypes
	}
	if flags.Changed("dump-dir") {
		cfg.DumpDir = *scrapeFlags.dumpDir
	}
	if cfg.MaxAttempts < 1 {
		return ScrapeConfig{}, fmt.Errorf("max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	return cfg, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--delay 5s] [--max-attempts 3] [--limit n] [--state-file path] [--resource-types labels] [--start-from code]",
	Short: "Scrapes every pending benchmark, resuming where the last run stopped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := resolveScrapeConfig(cmd)
		if err != nil {
			return err
		}
		resourceTypes, err := parseResourceTypes(cfg.ResourceTypes)
		if err != nil {
			return err
		}
		startFrom, err := parseStartFrom(*scrapeFlags.startFrom)
		if err != nil {
			return err
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		client, err := cpalms.NewClient(cpalms.ClientOptions{
			Timeout:           seconds(cfg.TimeoutSeconds),
			UserAgent:         cfg.UserAgent,
			CloudflareBypass:  cfg.CloudflareBypass,
			RequestsPerSecond: cfg.RequestsPerSecond,
			DumpDir:           cfg.DumpDir,
		})
		if err != nil {
			return err
		}

		tracker := resume.NewTracker(database, resume.TrackerOptions{
			Ceiling:   cfg.MaxAttempts,
			StateFile: cfg.StateFile,
			StartFrom: startFrom,
		})
		c := crawler.New(
			tracker,
			client,
			cpalms.NewExtractor(cpalms.ExtractorOptions{ResourceTypes: resourceTypes}),
			crawler.Options{
				Delay: seconds(cfg.DelaySeconds),
				Limit: *scrapeFlags.limit,
			},
		)

		if cfg.PerfStats {
			perfCtx, cancelPerf := context.WithCancel(ctx)
			defer cancelPerf()
			telemetry.InstrumentPerfStats(perfCtx, 15*time.Second)
		}

		summary, err := c.Run(ctx)
		printSummary(summary)

		if errors.Is(err, context.Canceled) {
			slog.Warn("scrape interrupted, progress is saved and the next run resumes from here")
			return nil
		}
		return err
	},
}

func printSummary(summary crawler.Summary) {
	t := newTable()
	t.SetTitle("Scrape summary")
	t.AppendRows([]table.Row{
		{"Processed", summary.Processed},
		{"Succeeded", summary.Succeeded},
		{"Failed", summary.Failed},
		{"Resources", summary.Resources},
		{"Access points", summary.AccessPoints},
		{"Settled as exhausted", summary.Settled},
		{"Duration", summary.Duration.Round(time.Second)},
	})
	t.Render()
}
