// Package observe provides application-wide observability primitives for
// Wheelhouse: OpenTelemetry metrics and HTTP middleware that records request
// timing and logs completion.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. Tests should use [NewMetrics]
// with their own [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Wheelhouse metrics.
const meterName = "github.com/rowanvale/wheelhouse"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// Turns counts handled dialog turns. Use with attributes:
	//   attribute.String("intent", ...)
	Turns metric.Int64Counter

	// TurnDuration tracks end-to-end turn handling latency.
	TurnDuration metric.Float64Histogram

	// ResolverOutcomes counts station resolution results. Use with attribute:
	//   attribute.String("outcome", "found"|"not_found"|"ambiguous")
	ResolverOutcomes metric.Int64Counter

	// CollaboratorErrors counts failures talking to external collaborators.
	// Use with attribute:
	//   attribute.String("collaborator", "feed"|"geocoder"|"store")
	CollaboratorErrors metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a synchronous turn that performs at most a handful of HTTP calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Turns, err = m.Int64Counter("wheelhouse.turns",
		metric.WithDescription("Number of dialog turns handled."),
	); err != nil {
		return nil, err
	}

	if met.TurnDuration, err = m.Float64Histogram("wheelhouse.turn.duration",
		metric.WithDescription("End-to-end latency of one dialog turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ResolverOutcomes, err = m.Int64Counter("wheelhouse.resolver.outcomes",
		metric.WithDescription("Station resolution results by outcome."),
	); err != nil {
		return nil, err
	}

	if met.CollaboratorErrors, err = m.Int64Counter("wheelhouse.collaborator.errors",
		metric.WithDescription("Failures talking to the feed, geocoder, or user store."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("wheelhouse.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}
