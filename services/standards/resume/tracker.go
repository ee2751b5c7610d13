package resume

import (
	"context"
	"database/sql"
	"errors"
	"fldoe-standards/lib/scrapers/cpalms"
	"fldoe-standards/services/standards/db"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("fldoe.services.standards.resume")

const DefaultCeiling = 3

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

type TrackerOptions struct {
	// attempts allowed per benchmark across all runs, defaults to DefaultCeiling
	Ceiling int
	// path of the json export, empty disables it
	StateFile string
	// benchmarks whose id sorts before this one are not handed out
	StartFrom string
	Now       func() time.Time
}

// Tracker owns the scrape_status ledger, every change to a benchmark's
// scrape state goes through it.
type Tracker struct {
	qry       *db.Queries
	makeTx    db.MakeTx
	ceiling   int64
	stateFile string
	startFrom string
	now       func() time.Time
}

func NewTracker(database *sql.DB, opts TrackerOptions) *Tracker {
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultCeiling
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		qry:       db.New(database),
		makeTx:    db.NewMakeTx(database),
		ceiling:   int64(opts.Ceiling),
		stateFile: opts.StateFile,
		startFrom: opts.StartFrom,
		now:       opts.Now,
	}
}

func (t *Tracker) Ceiling() int {
	return int(t.ceiling)
}

func (t *Tracker) pendingParams() db.PendingBenchmarksParams {
	return db.PendingBenchmarksParams{Ceiling: t.ceiling, StartFrom: t.startFrom}
}

// NextPending returns the first benchmark that still needs scraping, false if there are none.
func (t *Tracker) NextPending(ctx context.Context) (db.Benchmark, bool, error) {
	benchmark, err := t.qry.NextPendingBenchmark(ctx, t.pendingParams())
	if errors.Is(err, sql.ErrNoRows) {
		return db.Benchmark{}, false, nil
	}
	if err != nil {
		return db.Benchmark{}, false, persistenceErr("next pending", "", err)
	}
	return benchmark, true, nil
}

// Status returns false if the benchmark was never attempted.
func (t *Tracker) Status(ctx context.Context, benchmarkId string) (db.ScrapeStatus, bool, error) {
	status, err := t.qry.GetScrapeStatus(ctx, benchmarkId)
	if errors.Is(err, sql.ErrNoRows) {
		return db.ScrapeStatus{BenchmarkID: benchmarkId, Status: db.STATUS_PENDING}, false, nil
	}
	if err != nil {
		return db.ScrapeStatus{}, false, persistenceErr("get status", benchmarkId, err)
	}
	return status, true, nil
}

// RecordAttempt counts an attempt before it is made, so an attempt is never
// lost if the process dies during it.
func (t *Tracker) RecordAttempt(ctx context.Context, benchmarkId string) (db.ScrapeStatus, error) {
	ctx, span := tracer.Start(ctx, "RecordAttempt")
	defer span.End()

	tx, discard, commit, err := t.makeTx(ctx)
	if err != nil {
		return db.ScrapeStatus{}, persistenceErr("begin tx", benchmarkId, err)
	}
	defer discard()

	current, err := tx.GetScrapeStatus(ctx, benchmarkId)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return db.ScrapeStatus{}, persistenceErr("get status", benchmarkId, err)
	}
	next := db.ScrapeStatus{
		BenchmarkID:  benchmarkId,
		Status:       db.STATUS_PENDING,
		AttemptCount: current.AttemptCount + 1,
		LastAttempt:  t.now().Unix(),
		ErrorMessage: current.ErrorMessage,
	}
	err = tx.UpsertScrapeStatus(ctx, db.UpsertScrapeStatusParams{
		BenchmarkID:  next.BenchmarkID,
		Status:       next.Status,
		AttemptCount: next.AttemptCount,
		LastAttempt:  next.LastAttempt,
		ErrorMessage: next.ErrorMessage,
	})
	if err != nil {
		return db.ScrapeStatus{}, persistenceErr("record attempt", benchmarkId, err)
	}
	err = commit()
	if err != nil {
		return db.ScrapeStatus{}, persistenceErr("commit attempt", benchmarkId, err)
	}

	span.SetAttributes(
		attribute.String("benchmark", benchmarkId),
		attribute.Int64("attempt", next.AttemptCount),
	)
	slog.DebugContext(ctx, "recorded attempt", "benchmark", benchmarkId, "attempt", next.AttemptCount)
	return next, t.Export(ctx)
}

// MarkAttempt settles the outcome of the latest attempt. transient failures
// stay pending until the ceiling is reached.
func (t *Tracker) MarkAttempt(ctx context.Context, benchmarkId string, outcome Outcome, cause error) error {
	ctx, span := tracer.Start(ctx, "MarkAttempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("benchmark", benchmarkId),
		attribute.String("outcome", outcome.String()),
	)

	current, _, err := t.Status(ctx, benchmarkId)
	if err != nil {
		return err
	}

	status := db.STATUS_FAILED
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	switch outcome {
	case OutcomeSuccess:
		status = db.STATUS_SUCCESS
		message = ""
	case OutcomeTransient:
		if current.AttemptCount < t.ceiling {
			status = db.STATUS_PENDING
		}
	}

	err = t.qry.UpsertScrapeStatus(ctx, db.UpsertScrapeStatusParams{
		BenchmarkID:  benchmarkId,
		Status:       status,
		AttemptCount: current.AttemptCount,
		LastAttempt:  t.now().Unix(),
		ErrorMessage: message,
	})
	if err != nil {
		return persistenceErr("mark attempt", benchmarkId, err)
	}
	return t.Export(ctx)
}

// CommitSuccess replaces the benchmark's resources and access points and marks
// it successful in a single transaction.
func (t *Tracker) CommitSuccess(ctx context.Context, benchmarkId string, extraction cpalms.Extraction) error {
	ctx, span := tracer.Start(ctx, "CommitSuccess")
	defer span.End()
	span.SetAttributes(attribute.String("benchmark", benchmarkId))

	tx, discard, commit, err := t.makeTx(ctx)
	if err != nil {
		return persistenceErr("begin tx", benchmarkId, err)
	}
	defer discard()

	err = tx.DeleteResources(ctx, benchmarkId)
	if err != nil {
		return persistenceErr("delete resources", benchmarkId, err)
	}
	err = tx.DeleteAccessPoints(ctx, benchmarkId)
	if err != nil {
		return persistenceErr("delete access points", benchmarkId, err)
	}

	now := t.now().Unix()
	for _, r := range extraction.Resources {
		_, err = tx.CreateResource(ctx, db.CreateResourceParams{
			BenchmarkID:  benchmarkId,
			Title:        r.Title,
			Url:          r.Url,
			ResourceType: string(r.Type),
			Description:  r.Description,
			CreatedAt:    now,
		})
		if err != nil {
			return persistenceErr("create resource", benchmarkId, err)
		}
	}
	for _, ap := range extraction.AccessPoints {
		err = tx.CreateAccessPoint(ctx, db.CreateAccessPointParams{
			BenchmarkID:   benchmarkId,
			AccessPointID: ap.ID,
			Description:   ap.Description,
		})
		if err != nil {
			return persistenceErr("create access point", benchmarkId, err)
		}
	}

	current, err := tx.GetScrapeStatus(ctx, benchmarkId)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return persistenceErr("get status", benchmarkId, err)
	}
	err = tx.UpsertScrapeStatus(ctx, db.UpsertScrapeStatusParams{
		BenchmarkID:  benchmarkId,
		Status:       db.STATUS_SUCCESS,
		AttemptCount: current.AttemptCount,
		LastAttempt:  now,
	})
	if err != nil {
		return persistenceErr("mark success", benchmarkId, err)
	}

	err = commit()
	if err != nil {
		return persistenceErr("commit success", benchmarkId, err)
	}
	return t.Export(ctx)
}

// IsExhausted reports whether the benchmark failed with no attempts left.
func (t *Tracker) IsExhausted(ctx context.Context, benchmarkId string) (bool, error) {
	status, found, err := t.Status(ctx, benchmarkId)
	if err != nil || !found {
		return false, err
	}
	return status.Status == db.STATUS_FAILED && status.AttemptCount >= t.ceiling, nil
}

// Settle fails pending benchmarks that already used every attempt, which
// happens when a run is killed during a final attempt.
func (t *Tracker) Settle(ctx context.Context) (int, error) {
	n, err := t.qry.SettleExhausted(ctx, db.SettleExhaustedParams{
		ErrorMessage: "attempt ceiling reached",
		Ceiling:      t.ceiling,
	})
	if err != nil {
		return 0, persistenceErr("settle exhausted", "", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "settled exhausted benchmarks", "count", n)
		return int(n), t.Export(ctx)
	}
	return 0, nil
}

// Requeue makes failed benchmarks that still have attempts left pending again.
func (t *Tracker) Requeue(ctx context.Context) (int, error) {
	n, err := t.qry.RequeueFailed(ctx, t.ceiling)
	if err != nil {
		return 0, persistenceErr("requeue failed", "", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "requeued failed benchmarks", "count", n)
		return int(n), t.Export(ctx)
	}
	return 0, nil
}

// Remaining is the number of benchmarks still to be scraped.
func (t *Tracker) Remaining(ctx context.Context) (int, error) {
	n, err := t.qry.CountPendingBenchmarks(ctx, t.pendingParams())
	if err != nil {
		return 0, persistenceErr("count pending", "", err)
	}
	return int(n), nil
}
