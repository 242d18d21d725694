package auth

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/toolgate/observe"
)

// Option configures components built by this package.
type Option func(*options)

type options struct {
	logger     observe.Logger
	metrics    observe.AuthMetrics
	tracer     trace.Tracer
	httpClient *http.Client
	now        func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		logger:     observe.NopLogger(),
		metrics:    observe.NoopAuthMetrics(),
		tracer:     observe.NoopTracer(),
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(logger observe.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the authentication metrics. Default: no-op.
func WithMetrics(metrics observe.AuthMetrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer sets the tracer used for decision spans. Default: no-op.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithHTTPClient sets the client used for discovery and key-set fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithClock overrides the clock used for token validity and cache
// freshness. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
