package cpalms

import (
	"context"
	"errors"
	"fldoe-standards/lib/telemetry"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testBackoff = Backoff{
	Base:   20 * time.Millisecond,
	Max:    time.Second,
	Jitter: 5 * time.Millisecond,
}

func newTestClient(t testing.TB) *Client {
	t.Helper()
	client, err := NewClient(ClientOptions{
		Timeout: 5 * time.Second,
		Backoff: testBackoff,
	})
	require.NoError(t, err)
	return client
}

type hitLog struct {
	mutex sync.Mutex
	times []time.Time
}

func (l *hitLog) add() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.times = append(l.times, time.Now())
	return len(l.times)
}

func (l *hitLog) count() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.times)
}

func (l *hitLog) gaps() []time.Duration {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var gaps []time.Duration
	for i := 1; i < len(l.times); i++ {
		gaps = append(gaps, l.times[i].Sub(l.times[i-1]))
	}
	return gaps
}

func statusServer(t testing.TB, statuses ...int) (*httptest.Server, *hitLog) {
	t.Helper()
	hits := &hitLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.add()
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte("<html><body>ok</body></html>"))
		}
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func TestFetchRetriesUntilExhausted(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/cpalms")
	defer cleanup()

	server, hits := statusServer(t, http.StatusServiceUnavailable)
	client := newTestClient(t)

	var attempts []int
	_, err := client.Fetch(context.Background(), server.URL, FetchOptions{
		MaxAttempts: 3,
		OnAttempt: func(_ context.Context, attempt int) error {
			attempts = append(attempts, attempt)
			return nil
		},
	})

	var transient *TransientFetchError
	require.True(t, errors.As(err, &transient), "expected transient error, got %v", err)
	require.Equal(t, http.StatusServiceUnavailable, transient.StatusCode)
	require.Equal(t, 3, transient.Attempts)
	require.Equal(t, 3, hits.count())
	require.Equal(t, []int{1, 2, 3}, attempts)

	gaps := hits.gaps()
	require.Len(t, gaps, 2)
	for i, gap := range gaps {
		min, _ := testBackoff.Bounds(i + 1)
		require.GreaterOrEqual(t, gap, min, "retry %d", i+1)
	}
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	server, hits := statusServer(t, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusOK)
	client := newTestClient(t)

	page, err := client.Fetch(context.Background(), server.URL, FetchOptions{MaxAttempts: 3})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "ok")
	require.Equal(t, 3, hits.count())
}

func TestFetchFirstAttemptIsImmediate(t *testing.T) {
	server, hits := statusServer(t, http.StatusOK)
	client, err := NewClient(ClientOptions{Backoff: Backoff{Base: time.Minute}})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Fetch(context.Background(), server.URL, FetchOptions{MaxAttempts: 3})
	require.NoError(t, err)
	require.Equal(t, 1, hits.count())
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchFatalStatusIsNotRetried(t *testing.T) {
	server, hits := statusServer(t, http.StatusNotFound)
	client := newTestClient(t)

	_, err := client.Fetch(context.Background(), server.URL, FetchOptions{MaxAttempts: 3})
	var fatal *FatalFetchError
	require.True(t, errors.As(err, &fatal), "expected fatal error, got %v", err)
	require.Equal(t, http.StatusNotFound, fatal.StatusCode)
	require.Equal(t, 1, hits.count())
}

func TestFetchMalformedUrl(t *testing.T) {
	client := newTestClient(t)
	for _, rawUrl := range []string{"", "not a url", "ftp://www.cpalms.org/file", "http://"} {
		_, err := client.Fetch(context.Background(), rawUrl, FetchOptions{MaxAttempts: 3})
		var fatal *FatalFetchError
		require.True(t, errors.As(err, &fatal), "%q: expected fatal error, got %v", rawUrl, err)
	}
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	rawUrl := server.URL
	server.Close()

	client := newTestClient(t)
	_, err := client.Fetch(context.Background(), rawUrl, FetchOptions{MaxAttempts: 2})
	var transient *TransientFetchError
	require.True(t, errors.As(err, &transient), "expected transient error, got %v", err)
	require.Equal(t, 0, transient.StatusCode)
	require.Equal(t, 2, transient.Attempts)
}

func TestFetchAttemptHookAborts(t *testing.T) {
	server, hits := statusServer(t, http.StatusOK)
	client := newTestClient(t)

	hookErr := errors.New("disk full")
	_, err := client.Fetch(context.Background(), server.URL, FetchOptions{
		MaxAttempts: 3,
		OnAttempt: func(context.Context, int) error {
			return hookErr
		},
	})
	require.ErrorIs(t, err, hookErr)
	require.Equal(t, 0, hits.count())
}

func TestFetchCancelledDuringBackoff(t *testing.T) {
	server, hits := statusServer(t, http.StatusServiceUnavailable)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client, err := NewClient(ClientOptions{Backoff: Backoff{Base: time.Minute}})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Fetch(ctx, server.URL, FetchOptions{MaxAttempts: 3})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, hits.count())
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchAbortsOnHookErrorAfterRetry(t *testing.T) {
	server, hits := statusServer(t, http.StatusServiceUnavailable)
	client := newTestClient(t)

	hookErr := errors.New("database is locked")
	calls := 0
	_, err := client.Fetch(context.Background(), server.URL, FetchOptions{
		MaxAttempts: 5,
		OnAttempt: func(_ context.Context, attempt int) error {
			calls++
			if attempt == 2 {
				return hookErr
			}
			return nil
		},
	})
	require.ErrorIs(t, err, hookErr)
	require.Equal(t, 2, calls)
	require.Equal(t, 1, hits.count())
}

func TestDumpDir(t *testing.T) {
	server, _ := statusServer(t, http.StatusOK)
	dir := t.TempDir() + "/dump"

	client, err := NewClient(ClientOptions{DumpDir: dir})
	require.NoError(t, err)
	_, err = client.Get(context.Background(), server.URL+"/PreviewStandard/Preview/15236")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestBackoffBounds(t *testing.T) {
	backoff := Backoff{Base: 2 * time.Second, Jitter: 500 * time.Millisecond}

	min, max := backoff.Bounds(1)
	require.Equal(t, 1500*time.Millisecond, min)
	require.Equal(t, 2500*time.Millisecond, max)
	min, max = backoff.Bounds(3)
	require.Equal(t, 7500*time.Millisecond, min)
	require.Equal(t, 8500*time.Millisecond, max)

	for retry := 1; retry < 10; retry++ {
		_, prevMax := backoff.Bounds(retry)
		nextMin, _ := backoff.Bounds(retry + 1)
		require.GreaterOrEqual(t, nextMin, prevMax, "retry %d", retry)
	}

	zero, _ := backoff.Bounds(0)
	require.Equal(t, time.Duration(0), zero)

	capped := Backoff{Base: time.Second, Max: 5 * time.Second}
	min, max = capped.Bounds(10)
	require.Equal(t, 5*time.Second, min)
	require.Equal(t, 5*time.Second, max)

	wide := Backoff{Base: time.Second, Jitter: 2 * time.Second}
	min, _ = wide.Bounds(1)
	require.Equal(t, time.Duration(0), min)
}

func TestRequestRateCap(t *testing.T) {
	server, hits := statusServer(t, http.StatusOK)
	client, err := NewClient(ClientOptions{RequestsPerSecond: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), server.URL)
		require.NoError(t, err)
	}
	require.Equal(t, 3, hits.count())
	// the first request uses the burst, the next two wait 50ms each
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
