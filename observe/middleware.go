package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature for tool execution functions.
type ExecuteFunc func(ctx context.Context, tool ToolMeta, input any) (any, error)

// Middleware wraps tool execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Ownership: Input/output values are passed through without modification.
type Middleware struct {
	tracer   Tracer
	metrics  Metrics
	logger   Logger
	rejected func(error) bool
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(NoopTracer())
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// WithRejections returns a copy of m that logs errors matching rejected
// at warn level as "tool call rejected" instead of as failures. Use it for
// caller mistakes such as invalid arguments.
func (m *Middleware) WithRejections(rejected func(error) bool) *Middleware {
	c := *m
	c.rejected = rejected
	return &c
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging. Inputs are
// never logged. Calls with invalid metadata fail with ErrMissingToolName
// before fn runs.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, tool ToolMeta, input any) (any, error) {
		if err := tool.Validate(); err != nil {
			return nil, err
		}
		ctx, span := m.tracer.StartSpan(ctx, tool)
		start := time.Now()

		result, err := fn(ctx, tool, input)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, tool, duration, err)

		logger := m.logger
		if ext, ok := logger.(ExtendedLogger); ok {
			logger = ext.WithTool(tool)
		} else {
			logger = logger.With(F("tool.id", tool.ToolID()))
		}

		fields := []Field{F("duration_ms", float64(duration.Milliseconds()))}
		if caller, ok := CallerFromContext(ctx); ok && caller.Method != "" {
			fields = append(fields, F("auth_method", caller.Method))
		}
		switch {
		case err == nil:
			logger.Info(ctx, "tool call completed", fields...)
		case m.rejected != nil && m.rejected(err):
			logger.Warn(ctx, "tool call rejected", append(fields, F("error", err.Error()))...)
		default:
			logger.Error(ctx, "tool call failed", append(fields, F("error", err.Error()))...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
