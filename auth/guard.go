package auth

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/toolgate/observe"
)

// Status is the terminal state of one request evaluation.
type Status int

const (
	// StatusUnauthenticated means no verifier accepted the credential.
	StatusUnauthenticated Status = iota
	// StatusForbidden means the identity lacks the required scope.
	StatusForbidden
	// StatusAuthorized means the request may proceed.
	StatusAuthorized
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusAuthorized:
		return "authorized"
	case StatusForbidden:
		return "forbidden"
	default:
		return "unauthenticated"
	}
}

// Decision is the result of Guard.Evaluate.
type Decision struct {
	Status        Status
	Identity      *Identity
	Operation     string
	RequiredScope string

	// Err is ErrMissingCredentials or a *FailureError when
	// unauthenticated, and an *AuthzError when forbidden.
	Err error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.Status == StatusAuthorized }

// Guard authenticates a credential and authorizes an operation.
//
// Each request moves from unauthenticated to either rejected or
// authenticated, and an authenticated request to authorized or forbidden.
type Guard struct {
	verifier   *CompositeVerifier
	authorizer *ScopeAuthorizer
	disabled   bool
	tracer     trace.Tracer
	metrics    observe.AuthMetrics
	logger     observe.Logger
}

// NewGuard creates a guard.
func NewGuard(verifier *CompositeVerifier, authorizer *ScopeAuthorizer, opts ...Option) *Guard {
	o := newOptions(opts)
	if authorizer == nil {
		authorizer = NewScopeAuthorizer(nil)
	}
	if verifier == nil {
		verifier = NewCompositeVerifier(nil, opts...)
	}
	return &Guard{
		verifier:   verifier,
		authorizer: authorizer,
		tracer:     o.tracer,
		metrics:    o.metrics,
		logger:     o.logger,
	}
}

// NewOpenGuard creates a guard that authorizes every request as the
// anonymous identity.
func NewOpenGuard(authorizer *ScopeAuthorizer, opts ...Option) *Guard {
	g := NewGuard(nil, authorizer, opts...)
	g.disabled = true
	g.logger.Warn(context.Background(), "authentication disabled: every request is authorized as anonymous")
	return g
}

// Disabled reports whether this is an open guard.
func (g *Guard) Disabled() bool { return g.disabled }

// Authorizer returns the scope authorizer.
func (g *Guard) Authorizer() *ScopeAuthorizer { return g.authorizer }

// Evaluate decides whether credential may perform operation.
func (g *Guard) Evaluate(ctx context.Context, credential, operation string) Decision {
	ctx, span := g.tracer.Start(ctx, "auth.evaluate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("auth.operation", operation)))
	defer span.End()

	d := g.evaluate(ctx, strings.TrimSpace(credential), operation)

	span.SetAttributes(attribute.String("auth.status", d.Status.String()))
	if d.Identity != nil {
		span.SetAttributes(attribute.String("auth.provider", d.Identity.Provider))
	}
	g.metrics.RecordDecision(ctx, d.Status.String(), operation)
	return d
}

func (g *Guard) evaluate(ctx context.Context, credential, operation string) Decision {
	d := Decision{Operation: operation, RequiredScope: g.authorizer.RequiredScope(operation)}

	if g.disabled {
		d.Status = StatusAuthorized
		d.Identity = AnonymousIdentity()
		return d
	}
	if credential == "" {
		d.Status = StatusUnauthenticated
		d.Err = ErrMissingCredentials
		return d
	}

	out := g.verifier.Authenticate(ctx, credential)
	if !out.Authenticated {
		d.Status = StatusUnauthenticated
		d.Err = out.Err
		return d
	}
	d.Identity = out.Identity

	if err := g.authorizer.Authorize(ctx, &AuthzRequest{Subject: out.Identity, Operation: operation}); err != nil {
		g.logger.Info(ctx, "operation forbidden",
			observe.F("operation", operation),
			observe.F("required_scope", d.RequiredScope),
			observe.F("subject", out.Identity.Subject))
		d.Status = StatusForbidden
		d.Err = err
		return d
	}
	d.Status = StatusAuthorized
	return d
}
