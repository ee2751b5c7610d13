package crawler

import (
	"context"
	"errors"
	"fldoe-standards/lib/scrapers/cpalms"
	"fldoe-standards/services/standards/db"
	"fldoe-standards/services/standards/resume"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fldoe.services.standards.crawler")
var meter = otel.Meter("fldoe.services.standards.crawler")

var benchmarkCounter, _ = meter.Int64Counter(
	"cpalms.benchmarks",
	metric.WithDescription("benchmarks processed, by outcome"),
)

const DefaultDelay = 5 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, url string, opts cpalms.FetchOptions) (cpalms.Page, error)
}

type Extractor interface {
	Extract(ctx context.Context, page cpalms.Page) (cpalms.Extraction, error)
}

type Options struct {
	// wait between consecutive benchmarks
	Delay time.Duration
	// benchmarks processed per run, 0 means no limit
	Limit int
	// defaults to cpalms.SleepContext
	Sleep func(ctx context.Context, d time.Duration) error
}

type Summary struct {
	Processed    int
	Succeeded    int
	Failed       int
	Resources    int
	AccessPoints int
	// pending benchmarks that were already out of attempts when the run started
	Settled  int
	Duration time.Duration
}

type Crawler struct {
	tracker   *resume.Tracker
	fetcher   Fetcher
	extractor Extractor
	opts      Options
}

func New(tracker *resume.Tracker, fetcher Fetcher, extractor Extractor, opts Options) *Crawler {
	if opts.Sleep == nil {
		opts.Sleep = cpalms.SleepContext
	}
	return &Crawler{
		tracker:   tracker,
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
	}
}

// Run scrapes pending benchmarks one at a time until none are left. a persistence
// failure stops the run, every other failure only fails the benchmark it happened on.
// the summary is valid even when an error is returned.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	start := time.Now()
	summary := Summary{}
	settled, err := c.tracker.Settle(ctx)
	if err != nil {
		return summary, err
	}
	summary.Settled = settled

	remaining, err := c.tracker.Remaining(ctx)
	if err != nil {
		return summary, err
	}
	slog.InfoContext(ctx, "starting crawl",
		"pending", remaining,
		"ceiling", c.tracker.Ceiling(),
		"limit", c.opts.Limit,
		"delay", c.opts.Delay,
	)

	seen := map[string]bool{}
	for c.opts.Limit <= 0 || summary.Processed < c.opts.Limit {
		if ctx.Err() != nil {
			return c.finish(ctx, summary, start, ctx.Err())
		}

		benchmark, found, err := c.tracker.NextPending(ctx)
		if err != nil {
			return c.finish(ctx, summary, start, err)
		}
		if !found {
			break
		}
		if seen[benchmark.ID] {
			return c.finish(ctx, summary, start, fmt.Errorf("benchmark %s is still pending after being processed", benchmark.ID))
		}
		seen[benchmark.ID] = true

		if summary.Processed > 0 {
			err = c.opts.Sleep(ctx, c.opts.Delay)
			if err != nil {
				return c.finish(ctx, summary, start, err)
			}
		}

		extraction, err := c.process(ctx, benchmark)
		if err != nil {
			var persistErr *resume.PersistenceError
			if errors.As(err, &persistErr) || ctx.Err() != nil {
				return c.finish(ctx, summary, start, err)
			}
			summary.Processed++
			summary.Failed++
			benchmarkCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		} else {
			summary.Processed++
			summary.Succeeded++
			summary.Resources += len(extraction.Resources)
			summary.AccessPoints += len(extraction.AccessPoints)
			benchmarkCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
		}

		slog.InfoContext(ctx, "progress",
			"processed", summary.Processed,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"elapsed", time.Since(start).Round(time.Second),
		)
	}

	return c.finish(ctx, summary, start, nil)
}

func (c *Crawler) finish(ctx context.Context, summary Summary, start time.Time, err error) (Summary, error) {
	summary.Duration = time.Since(start)
	if err != nil {
		logf := slog.ErrorContext
		if errors.Is(err, context.Canceled) {
			logf = slog.WarnContext
		}
		logf(ctx, "crawl stopped", "processed", summary.Processed, "err", err)
	}
	return summary, err
}

// process returns a nil error when the benchmark was committed, and the
// failure otherwise. only persistence and context errors are left unrecorded
// in the ledger.
func (c *Crawler) process(ctx context.Context, benchmark db.Benchmark) (cpalms.Extraction, error) {
	ctx, span := tracer.Start(ctx, "process")
	defer span.End()
	span.SetAttributes(attribute.String("benchmark", benchmark.ID))

	status, _, err := c.tracker.Status(ctx, benchmark.ID)
	if err != nil {
		return cpalms.Extraction{}, err
	}
	attempt := status.AttemptCount
	budget := int64(c.tracker.Ceiling()) - attempt

	page, err := c.fetcher.Fetch(ctx, benchmark.CpalmsUrl, cpalms.FetchOptions{
		MaxAttempts: int(budget),
		OnAttempt: func(ctx context.Context, _ int) error {
			recorded, err := c.tracker.RecordAttempt(ctx, benchmark.ID)
			if err != nil {
				return err
			}
			attempt = recorded.AttemptCount
			slog.DebugContext(ctx, "fetching benchmark", "benchmark", benchmark.ID, "attempt", attempt, "url", benchmark.CpalmsUrl)
			return nil
		},
	})
	if err != nil {
		return cpalms.Extraction{}, c.fail(ctx, benchmark, attempt, err)
	}

	extraction, err := c.extractor.Extract(ctx, page)
	if err != nil {
		return cpalms.Extraction{}, c.fail(ctx, benchmark, attempt, err)
	}

	err = c.tracker.CommitSuccess(ctx, benchmark.ID, extraction)
	if err != nil {
		span.SetStatus(codes.Error, "commit failed")
		return cpalms.Extraction{}, err
	}

	slog.InfoContext(ctx, "scraped benchmark",
		"benchmark", benchmark.ID,
		"attempt", attempt,
		"resources", len(extraction.Resources),
		"access_points", len(extraction.AccessPoints),
	)
	return extraction, nil
}

// fail records a fetch or parse failure, the returned error is the original
// failure unless recording it failed.
func (c *Crawler) fail(ctx context.Context, benchmark db.Benchmark, attempt int64, cause error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(cause)
	span.SetStatus(codes.Error, "benchmark failed")

	var persistErr *resume.PersistenceError
	if errors.As(cause, &persistErr) {
		return cause
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	outcome := resume.OutcomeFatal
	var transient *cpalms.TransientFetchError
	if errors.As(cause, &transient) {
		outcome = resume.OutcomeTransient
	}

	slog.WarnContext(ctx, "benchmark failed",
		"benchmark", benchmark.ID,
		"attempt", attempt,
		"outcome", outcome.String(),
		"err", cause,
	)
	err := c.tracker.MarkAttempt(ctx, benchmark.ID, outcome, cause)
	if err != nil {
		return err
	}
	return cause
}
