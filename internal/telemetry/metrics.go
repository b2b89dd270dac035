package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/studiodesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	LoginsTotal        metric.Int64Counter
	LogoutsTotal       metric.Int64Counter
	InvalidationsTotal metric.Int64Counter

	// Tenant metrics
	TenantSwitchesTotal       metric.Int64Counter
	TenantAutoSelectionsTotal metric.Int64Counter
	TenantListFailuresTotal   metric.Int64Counter
	TenantListDuration        metric.Float64Histogram

	// Outgoing request metrics
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.LoginsTotal, _ = meter.Int64Counter(
		"studiodesk.session.logins.total",
		metric.WithDescription("Total number of successful session logins"),
		metric.WithUnit("{login}"),
	)

	m.LogoutsTotal, _ = meter.Int64Counter(
		"studiodesk.session.logouts.total",
		metric.WithDescription("Total number of session logouts"),
		metric.WithUnit("{logout}"),
	)

	m.InvalidationsTotal, _ = meter.Int64Counter(
		"studiodesk.session.invalidations.total",
		metric.WithDescription("Total number of sessions cleared outside an explicit logout"),
		metric.WithUnit("{session}"),
	)

	m.TenantSwitchesTotal, _ = meter.Int64Counter(
		"studiodesk.tenants.switches.total",
		metric.WithDescription("Total number of explicit tenant switches"),
		metric.WithUnit("{switch}"),
	)

	m.TenantAutoSelectionsTotal, _ = meter.Int64Counter(
		"studiodesk.tenants.auto_selections.total",
		metric.WithDescription("Total number of tenants selected automatically from the tenant list"),
		metric.WithUnit("{selection}"),
	)

	m.TenantListFailuresTotal, _ = meter.Int64Counter(
		"studiodesk.tenants.list.failures.total",
		metric.WithDescription("Total number of failed tenant list requests"),
		metric.WithUnit("{error}"),
	)

	m.TenantListDuration, _ = meter.Float64Histogram(
		"studiodesk.tenants.list.duration",
		metric.WithDescription("Duration of tenant list requests including retries"),
		metric.WithUnit("ms"),
	)

	m.RequestsTotal, _ = meter.Int64Counter(
		"studiodesk.client.requests.total",
		metric.WithDescription("Total number of outgoing API requests"),
		metric.WithUnit("{request}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"studiodesk.client.request.duration",
		metric.WithDescription("Duration of outgoing API requests"),
		metric.WithUnit("ms"),
	)

	return m
}
