package cpalms

import (
	"context"
	"errors"
	"fldoe-standards/lib/restyutil"
	"fldoe-standards/lib/telemetry"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/failsafe-go/failsafe-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	// per attempt, defaults to 30s
	Timeout   time.Duration
	UserAgent string
	// routes requests through a transport that mimics a browser's tls handshake
	CloudflareBypass bool
	// caps the request rate across all fetches, zero means no cap
	RequestsPerSecond float64
	// if set, every request/response pair is written to a file in this directory
	DumpDir string
	// zero value uses DefaultBackoff
	Backoff Backoff
}

type Client struct {
	http    *resty.Client
	backoff Backoff
}

// Page is a successfully fetched document.
type Page struct {
	Url        string
	StatusCode int
	Body       []byte
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff = DefaultBackoff()
	}

	client := resty.New()
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, "fldoe.lib.scrapers.cpalms.http")
	if opts.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, err
		}
		restyutil.DumpExchanges(client, output)
	}

	return &Client{
		http:    client,
		backoff: opts.Backoff,
	}, nil
}

func validateUrl(rawUrl string) error {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme '%s'", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Get makes a single attempt at fetching the url. failures are either a
// *TransientFetchError, a *FatalFetchError or the context's error.
func (c *Client) Get(ctx context.Context, rawUrl string) (Page, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawUrl))

	err := validateUrl(rawUrl)
	if err != nil {
		span.SetStatus(codes.Error, "invalid url")
		c.recordAttempt(ctx, "fatal", 0)
		return Page{}, &FatalFetchError{Url: rawUrl, Err: err}
	}

	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		Get(rawUrl)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.recordAttempt(ctx, "transient", elapsed)
		return Page{}, &TransientFetchError{Url: rawUrl, Err: err}
	}

	status := res.StatusCode()
	span.SetAttributes(attribute.Int("status", status))
	switch {
	case status >= 200 && status < 300:
		c.recordAttempt(ctx, "success", elapsed)
		return Page{
			Url:        rawUrl,
			StatusCode: status,
			Body:       res.Body(),
		}, nil
	case IsRetryableStatus(status):
		span.SetStatus(codes.Error, res.Status())
		c.recordAttempt(ctx, "transient", elapsed)
		return Page{}, &TransientFetchError{Url: rawUrl, StatusCode: status}
	default:
		span.SetStatus(codes.Error, res.Status())
		c.recordAttempt(ctx, "fatal", elapsed)
		return Page{}, &FatalFetchError{Url: rawUrl, StatusCode: status}
	}
}

func (c *Client) recordAttempt(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	fetchAttempts.Add(ctx, 1, attrs)
	if elapsed > 0 {
		fetchDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

type FetchOptions struct {
	// total attempts including the first, values below 1 mean 1
	MaxAttempts int
	// called before every attempt with its 1-based number, a non-nil
	// error stops the fetch and is returned as is
	OnAttempt func(ctx context.Context, attempt int) error
}

// Fetch retries transient failures with exponential backoff until
// opts.MaxAttempts is reached. the first attempt is made immediately.
func (c *Client) Fetch(ctx context.Context, rawUrl string, opts FetchOptions) (Page, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	maxAttempts := max(opts.MaxAttempts, 1)
	policy := c.backoff.retryPolicy(ctx, rawUrl, maxAttempts)

	attempts := 0
	page, err := failsafe.With[Page](policy).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[Page]) (Page, error) {
			attempt := exec.Attempts()
			attempts = attempt
			if opts.OnAttempt != nil {
				err := opts.OnAttempt(ctx, attempt)
				if err != nil {
					return Page{}, err
				}
			}

			page, err := c.Get(ctx, rawUrl)
			var transient *TransientFetchError
			if errors.As(err, &transient) {
				transient.Attempts = attempt
				slog.WarnContext(
					ctx, "transient fetch failure",
					"url", rawUrl,
					"attempt", attempt,
					"max_attempts", maxAttempts,
					"err", err,
				)
			}
			return page, err
		})
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		span.RecordError(err)
		if isTransient(err) {
			span.SetStatus(codes.Error, "attempts exhausted")
		} else {
			span.SetStatus(codes.Error, "fetch failed")
		}
		return Page{}, err
	}
	span.SetAttributes(attribute.Int("attempts", attempts))
	return page, nil
}
