package cpalms

import (
	"bytes"
	"context"
	"fldoe-standards/lib/htmlutil"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type ExtractorOptions struct {
	// only resources with these labels are kept, empty keeps every label
	ResourceTypes []ResourceType
	// defaults to DefaultResourceStrategies
	ResourceStrategies []ResourceStrategy
	// defaults to DefaultAccessPointStrategies
	AccessPointStrategies []AccessPointStrategy
}

type Extractor struct {
	accept                map[ResourceType]bool
	resourceStrategies    []ResourceStrategy
	accessPointStrategies []AccessPointStrategy
}

func NewExtractor(opts ExtractorOptions) *Extractor {
	var accept map[ResourceType]bool
	if len(opts.ResourceTypes) > 0 {
		accept = make(map[ResourceType]bool, len(opts.ResourceTypes))
		for _, t := range opts.ResourceTypes {
			accept[t] = true
		}
	}
	if opts.ResourceStrategies == nil {
		opts.ResourceStrategies = DefaultResourceStrategies()
	}
	if opts.AccessPointStrategies == nil {
		opts.AccessPointStrategies = DefaultAccessPointStrategies()
	}
	return &Extractor{
		accept:                accept,
		resourceStrategies:    opts.ResourceStrategies,
		accessPointStrategies: opts.AccessPointStrategies,
	}
}

// Extract reads the resources and access points out of a benchmark page.
// missing sections are not an error, only documents without any markup are.
func (e *Extractor) Extract(ctx context.Context, page Page) (Extraction, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(attribute.String("url", page.Url))

	if !htmlutil.HasMarkup(page.Body) {
		span.SetStatus(codes.Error, "no markup")
		return Extraction{}, &ParseError{Url: page.Url, Reason: "document is not html text"}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return Extraction{}, &ParseError{Url: page.Url, Reason: "read html", Err: err}
	}

	base, err := url.Parse(page.Url)
	if err != nil {
		slog.WarnContext(ctx, "page url is not resolvable, keeping links as is", "url", page.Url, "err", err)
		base = nil
	}

	result := Extraction{
		Resources:    []Resource{},
		AccessPoints: []AccessPoint{},
	}

	for _, strategy := range e.resourceStrategies {
		found := strategy.FindResources(ctx, doc, base)
		if len(found) == 0 {
			continue
		}
		result.ResourceStrategy = strategy.Name()
		seen := map[string]bool{}
		for _, r := range found {
			if seen[r.Url] || (e.accept != nil && !e.accept[r.Type]) {
				continue
			}
			seen[r.Url] = true
			result.Resources = append(result.Resources, r)
		}
		break
	}

	for _, strategy := range e.accessPointStrategies {
		found := strategy.FindAccessPoints(ctx, doc, base)
		if len(found) == 0 {
			continue
		}
		result.AccessPointStrategy = strategy.Name()
		seen := map[string]bool{}
		for _, ap := range found {
			if seen[ap.ID] {
				continue
			}
			seen[ap.ID] = true
			result.AccessPoints = append(result.AccessPoints, ap)
		}
		break
	}

	span.SetAttributes(
		attribute.Int("resources", len(result.Resources)),
		attribute.Int("access_points", len(result.AccessPoints)),
		attribute.String("resource_strategy", result.ResourceStrategy),
		attribute.String("access_point_strategy", result.AccessPointStrategy),
	)
	extractedRecords.Add(ctx, int64(len(result.Resources)), metric.WithAttributes(attribute.String("kind", "resource")))
	extractedRecords.Add(ctx, int64(len(result.AccessPoints)), metric.WithAttributes(attribute.String("kind", "access_point")))

	if len(result.Resources) == 0 && len(result.AccessPoints) == 0 {
		slog.InfoContext(ctx, "no resources or access points found", "url", page.Url)
	}
	return result, nil
}
