package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Caller identifies the authenticated principal behind a tool call.
// Subject is recorded on spans only; metrics carry Provider and Method,
// which have bounded cardinality.
type Caller struct {
	Subject  string
	Provider string
	Method   string
}

type callerKey struct{}

// ContextWithCaller returns a context carrying c.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller attached by ContextWithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func (c Caller) metricAttributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if c.Provider != "" {
		attrs = append(attrs, attribute.String("auth.provider", c.Provider))
	}
	if c.Method != "" {
		attrs = append(attrs, attribute.String("auth.method", c.Method))
	}
	return attrs
}

func (c Caller) spanAttributes() []attribute.KeyValue {
	attrs := c.metricAttributes()
	if c.Subject != "" {
		attrs = append(attrs, attribute.String("enduser.id", c.Subject))
	}
	return attrs
}
