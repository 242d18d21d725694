package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics records authentication telemetry. Attribute values are
// limited to verifier names, issuers, operations and result classes;
// credentials and subjects are never recorded.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type AuthMetrics interface {
	// RecordVerification records one verifier attempt. result is "success"
	// or a failure reason class such as "expired".
	RecordVerification(ctx context.Context, verifier, result string, duration time.Duration)

	// RecordDecision records the terminal state of one request evaluation.
	RecordDecision(ctx context.Context, status, operation string)

	// RecordKeySetFetch records one key-set fetch attempt for an issuer.
	RecordKeySetFetch(ctx context.Context, issuer, result string)

	// RecordDegraded records a lookup served from a stale key-set snapshot.
	RecordDegraded(ctx context.Context, issuer string)
}

type authMetrics struct {
	verifyTotal    metric.Int64Counter
	verifyDuration metric.Float64Histogram
	decisionTotal  metric.Int64Counter
	fetchTotal     metric.Int64Counter
	degradedTotal  metric.Int64Counter
}

// NewAuthMetrics creates authentication instruments on the given meter.
func NewAuthMetrics(meter metric.Meter) (AuthMetrics, error) {
	verifyTotal, err := meter.Int64Counter(
		"auth.verify.total",
		metric.WithDescription("Credential verification attempts by verifier and result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	verifyDuration, err := meter.Float64Histogram(
		"auth.verify.duration_ms",
		metric.WithDescription("Credential verification duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	decisionTotal, err := meter.Int64Counter(
		"auth.decision.total",
		metric.WithDescription("Request authorization decisions by status and operation"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"auth.keyset.fetch.total",
		metric.WithDescription("Key-set fetches by issuer and result"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	degradedTotal, err := meter.Int64Counter(
		"auth.keyset.degraded",
		metric.WithDescription("Key lookups served from a stale key-set snapshot"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &authMetrics{
		verifyTotal:    verifyTotal,
		verifyDuration: verifyDuration,
		decisionTotal:  decisionTotal,
		fetchTotal:     fetchTotal,
		degradedTotal:  degradedTotal,
	}, nil
}

func (m *authMetrics) RecordVerification(ctx context.Context, verifier, result string, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("verifier", verifier),
		attribute.String("result", result),
	)
	m.verifyTotal.Add(ctx, 1, opt)
	m.verifyDuration.Record(ctx, float64(duration.Microseconds())/1000,
		metric.WithAttributes(attribute.String("verifier", verifier)))
}

func (m *authMetrics) RecordDecision(ctx context.Context, status, operation string) {
	m.decisionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("operation", operation),
	))
}

func (m *authMetrics) RecordKeySetFetch(ctx context.Context, issuer, result string) {
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("issuer", issuer),
		attribute.String("result", result),
	))
}

func (m *authMetrics) RecordDegraded(ctx context.Context, issuer string) {
	m.degradedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("issuer", issuer)))
}

type noopAuthMetrics struct{}

// NoopAuthMetrics returns an AuthMetrics that records nothing.
func NoopAuthMetrics() AuthMetrics { return noopAuthMetrics{} }

func (noopAuthMetrics) RecordVerification(context.Context, string, string, time.Duration) {}
func (noopAuthMetrics) RecordDecision(context.Context, string, string)                    {}
func (noopAuthMetrics) RecordKeySetFetch(context.Context, string, string)                 {}
func (noopAuthMetrics) RecordDegraded(context.Context, string)                            {}
