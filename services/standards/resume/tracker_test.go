package resume

import (
	"context"
	"database/sql"
	"errors"
	"fldoe-standards/lib/scrapers/cpalms"
	"fldoe-standards/lib/testutil"
	"fldoe-standards/services/standards/db"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	tracker   *Tracker
	qry       *db.Queries
	database  *sql.DB
	stateFile string
}

func setup(t testing.TB, benchmarkIds ...string) fixture {
	t.Helper()
	res := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "standards/resume",
		DbSchema: db.Schema,
	})
	qry := db.New(res.DB)
	for _, id := range benchmarkIds {
		_, err := qry.CreateBenchmark(context.Background(), db.CreateBenchmarkParams{
			ID:        id,
			Subject:   "Mathematics",
			CpalmsUrl: "https://www.cpalms.org/PreviewStandard/Preview/" + id,
		})
		require.NoError(t, err)
	}

	stateFile := filepath.Join(t.TempDir(), "scrape_state.json")
	clock := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(res.DB, TrackerOptions{
		Ceiling:   3,
		StateFile: stateFile,
		Now:       func() time.Time { return clock },
	})
	return fixture{tracker: tracker, qry: qry, database: res.DB, stateFile: stateFile}
}

func TestRecordAttempt(t *testing.T) {
	f := setup(t, "MA.K.NSO.1.1")
	ctx := context.Background()

	status, err := f.tracker.RecordAttempt(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.Equal(t, db.STATUS_PENDING, status.Status)
	require.EqualValues(t, 1, status.AttemptCount)

	status, err = f.tracker.RecordAttempt(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.EqualValues(t, 2, status.AttemptCount)

	state, err := ReadStateFile(f.stateFile)
	require.NoError(t, err)
	require.Equal(t, 3, state.Ceiling)
	require.Equal(t, StateEntry{
		Status:       db.STATUS_PENDING,
		AttemptCount: 2,
		LastAttempt:  time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC),
	}, state.Benchmarks["MA.K.NSO.1.1"])
}

func TestTransientFailuresReachCeiling(t *testing.T) {
	f := setup(t, "MA.K.NSO.1.1")
	ctx := context.Background()
	cause := errors.New("http 503")

	for i := 1; i <= 3; i++ {
		_, err := f.tracker.RecordAttempt(ctx, "MA.K.NSO.1.1")
		require.NoError(t, err)
		require.NoError(t, f.tracker.MarkAttempt(ctx, "MA.K.NSO.1.1", OutcomeTransient, cause))

		status, _, err := f.tracker.Status(ctx, "MA.K.NSO.1.1")
		require.NoError(t, err)
		if i < 3 {
			require.Equal(t, db.STATUS_PENDING, status.Status)
		} else {
			require.Equal(t, db.STATUS_FAILED, status.Status)
		}
		require.Equal(t, "http 503", status.ErrorMessage)
	}

	exhausted, err := f.tracker.IsExhausted(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.True(t, exhausted)

	_, found, err := f.tracker.NextPending(ctx)
	require.NoError(t, err)
	require.False(t, found)

	// exhausted benchmarks are not requeued
	n, err := f.tracker.Requeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFatalFailureAndRequeue(t *testing.T) {
	f := setup(t, "MA.K.NSO.1.1", "MA.K.NSO.1.2")
	ctx := context.Background()

	_, err := f.tracker.RecordAttempt(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.NoError(t, f.tracker.MarkAttempt(ctx, "MA.K.NSO.1.1", OutcomeFatal, errors.New("http 404")))

	exhausted, err := f.tracker.IsExhausted(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.False(t, exhausted)

	next, found, err := f.tracker.NextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "MA.K.NSO.1.2", next.ID)

	n, err := f.tracker.Requeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	next, found, err = f.tracker.NextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "MA.K.NSO.1.1", next.ID)

	remaining, err := f.tracker.Remaining(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, remaining)
}

func TestCommitSuccessReplacesRecords(t *testing.T) {
	f := setup(t, "MA.K.NSO.1.1")
	ctx := context.Background()

	_, err := f.tracker.RecordAttempt(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.NoError(t, f.tracker.CommitSuccess(ctx, "MA.K.NSO.1.1", cpalms.Extraction{
		Resources: []cpalms.Resource{
			{Title: "Old Lesson", Url: "https://www.cpalms.org/PreviewResource/Preview/1", Type: cpalms.LessonPlan},
		},
		AccessPoints: []cpalms.AccessPoint{{ID: "MA.K.NSO.1.AP.1", Description: "old"}},
	}))

	require.NoError(t, f.tracker.CommitSuccess(ctx, "MA.K.NSO.1.1", cpalms.Extraction{
		Resources: []cpalms.Resource{
			{Title: "Counting Critters", Url: "https://www.cpalms.org/PreviewResource/Preview/203400", Type: cpalms.LessonPlan},
			{Title: "How Many Are There?", Url: "https://www.cpalms.org/PreviewResource/Preview/155711", Type: cpalms.FormativeAssessment},
		},
	}))

	resources, err := f.qry.ListResources(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	require.Equal(t, "Counting Critters", resources[0].Title)

	accessPoints, err := f.qry.ListAccessPoints(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.Empty(t, accessPoints)

	status, _, err := f.tracker.Status(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.Equal(t, db.STATUS_SUCCESS, status.Status)
	require.EqualValues(t, 1, status.AttemptCount)
	require.Empty(t, status.ErrorMessage)

	_, found, err := f.tracker.NextPending(ctx)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSettleInterruptedFinalAttempt(t *testing.T) {
	f := setup(t, "MA.K.NSO.1.1")
	ctx := context.Background()

	// three attempts recorded but the process died before the last outcome was written
	for i := 0; i < 3; i++ {
		_, err := f.tracker.RecordAttempt(ctx, "MA.K.NSO.1.1")
		require.NoError(t, err)
	}
	_, found, err := f.tracker.NextPending(ctx)
	require.NoError(t, err)
	require.False(t, found)

	n, err := f.tracker.Settle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	exhausted, err := f.tracker.IsExhausted(ctx, "MA.K.NSO.1.1")
	require.NoError(t, err)
	require.True(t, exhausted)

	state, err := ReadStateFile(f.stateFile)
	require.NoError(t, err)
	require.Equal(t, db.STATUS_FAILED, state.Benchmarks["MA.K.NSO.1.1"].Status)
	require.Equal(t, "attempt ceiling reached", state.Benchmarks["MA.K.NSO.1.1"].Error)
}

func TestStartFromSkipsEarlierBenchmarks(t *testing.T) {
	f := setup(t, "MA.K.NSO.1.1", "MA.K.NSO.1.2", "MA.K.NSO.2.1")
	ctx := context.Background()
	tracker := NewTracker(f.database, TrackerOptions{Ceiling: 3, StartFrom: "MA.K.NSO.1.2"})

	remaining, err := tracker.Remaining(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, remaining)

	next, found, err := tracker.NextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "MA.K.NSO.1.2", next.ID)

	require.NoError(t, tracker.CommitSuccess(ctx, "MA.K.NSO.1.2", cpalms.Extraction{}))
	next, found, err = tracker.NextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "MA.K.NSO.2.1", next.ID)

	// the benchmark before the starting point is still pending for an unfiltered tracker
	next, found, err = f.tracker.NextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "MA.K.NSO.1.1", next.ID)
}

func TestNoStateFile(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "standards/resume", DbSchema: db.Schema})
	tracker := NewTracker(res.DB, TrackerOptions{})
	require.Equal(t, DefaultCeiling, tracker.Ceiling())
	require.NoError(t, tracker.Export(context.Background()))
}

func TestPersistenceErrors(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "standards/resume", DbSchema: db.Schema})
	tracker := NewTracker(res.DB, TrackerOptions{})
	require.NoError(t, res.DB.Close())

	var persistErr *PersistenceError
	_, _, err := tracker.NextPending(context.Background())
	require.True(t, errors.As(err, &persistErr), "got %v", err)

	_, err = tracker.RecordAttempt(context.Background(), "MA.K.NSO.1.1")
	require.True(t, errors.As(err, &persistErr), "got %v", err)
	require.Equal(t, "MA.K.NSO.1.1", persistErr.BenchmarkID)
}
