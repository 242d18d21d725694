package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonwraymond/toolgate/observe"
)

// Invoker runs registered tools through the result cache and the
// observability middleware.
type Invoker struct {
	registry *Registry
	cache    *ResultCache
	exec     observe.ExecuteFunc
}

// InvokerOption configures an Invoker.
type InvokerOption func(*invokerOptions)

type invokerOptions struct {
	cache      *ResultCache
	middleware *observe.Middleware
}

// WithResultCache serves repeated calls from cache. Default: no cache.
func WithResultCache(c *ResultCache) InvokerOption {
	return func(o *invokerOptions) { o.cache = c }
}

// WithMiddleware records a span, metrics and a log line per call.
func WithMiddleware(m *observe.Middleware) InvokerOption {
	return func(o *invokerOptions) { o.middleware = m }
}

// NewInvoker creates an Invoker over registry.
func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	var o invokerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.middleware == nil {
		o.middleware = observe.NewMiddleware(nil, nil, nil)
	}

	inv := &Invoker{registry: registry, cache: o.cache}
	inv.exec = o.middleware.WithRejections(isRejection).Wrap(inv.execute)
	return inv
}

// Registry returns the tool registry.
func (i *Invoker) Registry() *Registry { return i.registry }

// Invoke runs the named tool and returns its JSON-encoded result.
func (i *Invoker) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	tool, ok := i.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	meta := observe.ToolMeta{
		Namespace: tool.Namespace,
		Name:      tool.Name,
		Tags:      tool.Tags,
	}
	out, err := i.exec(ctx, meta, args)
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (i *Invoker) execute(ctx context.Context, meta observe.ToolMeta, input any) (any, error) {
	tool, ok := i.registry.Lookup(meta.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, meta.Name)
	}
	args, _ := input.(json.RawMessage)
	return i.cache.Do(ctx, tool, args, func(ctx context.Context) ([]byte, error) {
		result, err := tool.Handler(ctx, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidArguments) || errors.Is(err, ErrUnknownTool)
}
