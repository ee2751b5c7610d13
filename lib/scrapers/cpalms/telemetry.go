package cpalms

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("fldoe.lib.scrapers.cpalms")
var meter = otel.Meter("fldoe.lib.scrapers.cpalms")

var fetchAttempts, _ = meter.Int64Counter(
	"cpalms.fetch.attempts",
	metric.WithDescription("http attempts made against cpalms, by outcome"),
)
var fetchDuration, _ = meter.Float64Histogram(
	"cpalms.fetch.duration",
	metric.WithDescription("duration of a single fetch attempt"),
	metric.WithUnit("s"),
)
var extractedRecords, _ = meter.Int64Counter(
	"cpalms.extract.records",
	metric.WithDescription("records extracted from benchmark pages, by kind"),
)
