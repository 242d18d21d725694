package authhttp

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/observe"
)

// DefaultRealm is the realm advertised in challenges.
const DefaultRealm = "toolgate"

// OperationFunc names the operation a request performs.
type OperationFunc func(r *http.Request) string

// StaticOperation returns an OperationFunc that always yields op.
func StaticOperation(op string) OperationFunc {
	return func(*http.Request) string { return op }
}

// PathValueOperation returns an OperationFunc that reads the named
// ServeMux path wildcard, e.g. "name" for "/tools/{name}".
func PathValueOperation(name string) OperationFunc {
	return func(r *http.Request) string { return r.PathValue(name) }
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithRealm sets the challenge realm. Default: "toolgate".
func WithRealm(realm string) Option {
	return func(m *Middleware) { m.realm = realm }
}

// WithResourceMetadataURL sets the protected resource metadata URL
// advertised in challenges.
func WithResourceMetadataURL(u string) Option {
	return func(m *Middleware) { m.resourceMetadata = u }
}

// WithAPIKeyHeader reads the credential from header when no Bearer
// Authorization header is present.
func WithAPIKeyHeader(header string) Option {
	return func(m *Middleware) { m.apiKeyHeader = header }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(logger observe.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Middleware enforces guard decisions on HTTP requests.
type Middleware struct {
	guard            *auth.Guard
	operation        OperationFunc
	realm            string
	resourceMetadata string
	apiKeyHeader     string
	logger           observe.Logger
}

// New creates a middleware that evaluates each request with guard.
func New(guard *auth.Guard, operation OperationFunc, opts ...Option) *Middleware {
	m := &Middleware{
		guard:     guard,
		operation: operation,
		realm:     DefaultRealm,
		logger:    observe.NopLogger(),
	}
	if m.operation == nil {
		m.operation = StaticOperation("")
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap returns next guarded by the middleware. On success the identity is
// available through auth.IdentityFromContext.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		credential, err := m.credential(r)
		if err != nil {
			var c challenge
			c.add("realm", m.realm)
			c.add("error", ErrorInvalidRequest)
			c.add("error_description", "malformed Authorization header")
			w.Header().Set("WWW-Authenticate", c.String())
			writeError(w, http.StatusBadRequest, ErrorInvalidRequest, "malformed Authorization header")
			return
		}

		d := m.guard.Evaluate(ctx, credential, m.operation(r))
		switch d.Status {
		case auth.StatusAuthorized:
			ctx = auth.WithIdentity(ctx, d.Identity)
			ctx = observe.ContextWithFields(ctx,
				observe.F("subject", d.Identity.Subject),
				observe.F("provider", d.Identity.Provider))
			ctx = observe.ContextWithCaller(ctx, observe.Caller{
				Subject:  d.Identity.Subject,
				Provider: d.Identity.Provider,
				Method:   string(d.Identity.Method),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		case auth.StatusForbidden:
			w.Header().Set("WWW-Authenticate", Challenge(m.realm, m.resourceMetadata, d))
			writeError(w, http.StatusForbidden, ErrorInsufficientScope, "the token lacks the required scope")
		default:
			m.logger.Debug(ctx, "request unauthenticated", observe.F("operation", d.Operation))
			w.Header().Set("WWW-Authenticate", Challenge(m.realm, m.resourceMetadata, d))
			writeError(w, http.StatusUnauthorized, ErrorInvalidToken, "authentication required")
		}
	})
}

func (m *Middleware) credential(r *http.Request) (string, error) {
	token, err := BearerToken(r)
	if err != nil || token != "" {
		return token, err
	}
	if m.apiKeyHeader != "" {
		return r.Header.Get(m.apiKeyHeader), nil
	}
	return "", nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, ErrorDescription: description})
}
