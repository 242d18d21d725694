package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/toolgate/observe"
)

// Attempt records one verifier's rejection.
type Attempt struct {
	Verifier string
	Err      error
	Duration time.Duration
}

// Outcome is the result of one composite verification.
type Outcome struct {
	// Authenticated reports success.
	Authenticated bool

	// Identity is set on success.
	Identity *Identity

	// Verifier names the verifier that succeeded.
	Verifier string

	// Err is a *FailureError on failure.
	Err error

	// Attempts lists the rejections before success or failure. For
	// diagnostics only; never expose them to the caller.
	Attempts []Attempt
}

// FailureError is returned when no verifier accepts a credential. Its
// message is generic; the per-verifier reasons are in Attempts.
type FailureError struct {
	Attempts []Attempt

	// Cause is set when iteration stopped because the context ended.
	Cause error
}

// Error implements error.
func (e *FailureError) Error() string { return ErrAuthenticationFailed.Error() }

// Unwrap returns ErrAuthenticationFailed and the cause, if any.
func (e *FailureError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAuthenticationFailed}
	}
	return []error{ErrAuthenticationFailed, e.Cause}
}

// Reasons returns "verifier: reason" for every attempt.
func (e *FailureError) Reasons() []string {
	out := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Verifier + ": " + ReasonLabel(a.Err)
	}
	return out
}

// CompositeVerifier tries verifiers in order. The first success wins and
// later verifiers are not invoked.
type CompositeVerifier struct {
	verifiers []Verifier
	logger    observe.Logger
	metrics   observe.AuthMetrics
}

var _ Verifier = (*CompositeVerifier)(nil)

// NewCompositeVerifier creates a composite over verifiers, in order.
func NewCompositeVerifier(verifiers []Verifier, opts ...Option) *CompositeVerifier {
	o := newOptions(opts)
	vs := make([]Verifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			vs = append(vs, v)
		}
	}
	return &CompositeVerifier{verifiers: vs, logger: o.logger, metrics: o.metrics}
}

// Name returns "composite".
func (c *CompositeVerifier) Name() string { return "composite" }

// Verifiers returns the names of the verifiers in order.
func (c *CompositeVerifier) Verifiers() []string {
	names := make([]string, len(c.verifiers))
	for i, v := range c.verifiers {
		names[i] = v.Name()
	}
	return names
}

// Authenticate offers credential to each verifier in turn.
func (c *CompositeVerifier) Authenticate(ctx context.Context, credential string) Outcome {
	var attempts []Attempt
	for _, v := range c.verifiers {
		if err := ctx.Err(); err != nil {
			return c.failed(ctx, attempts, err)
		}

		start := time.Now()
		id, err := v.Verify(ctx, credential)
		elapsed := time.Since(start)
		if err == nil && id == nil {
			err = verifyError(v.Name(), ErrMalformed, errors.New("verifier returned no identity"))
		}
		c.metrics.RecordVerification(ctx, v.Name(), ReasonLabel(err), elapsed)

		if err == nil {
			c.logger.Debug(ctx, "credential accepted",
				observe.F("verifier", v.Name()),
				observe.F("subject", id.Subject))
			return Outcome{Authenticated: true, Identity: id, Verifier: v.Name(), Attempts: attempts}
		}

		attempts = append(attempts, Attempt{Verifier: v.Name(), Err: err, Duration: elapsed})
		c.logger.Debug(ctx, "credential rejected",
			observe.F("verifier", v.Name()),
			observe.F("reason", ReasonLabel(err)))
	}
	return c.failed(ctx, attempts, nil)
}

func (c *CompositeVerifier) failed(ctx context.Context, attempts []Attempt, cause error) Outcome {
	fe := &FailureError{Attempts: attempts, Cause: cause}
	fields := []observe.Field{observe.F("reasons", fe.Reasons())}
	if cause != nil {
		fields = append(fields, observe.F("error", cause))
	}
	c.logger.Info(ctx, "authentication failed", fields...)
	return Outcome{Err: fe, Attempts: attempts}
}

// Verify implements Verifier. Failures are *FailureError.
func (c *CompositeVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	out := c.Authenticate(ctx, credential)
	if !out.Authenticated {
		return nil, out.Err
	}
	return out.Identity, nil
}
