package auth

import (
	"context"
	"fmt"
)

// Verifier turns a credential into an Identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: failures are *VerifyError values wrapping one reason sentinel.
// - Credentials must never appear in errors or logs.
type Verifier interface {
	// Name identifies the verifier in logs and metrics.
	Name() string

	// Verify checks credential and returns the identity it proves.
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// VerifyError describes why one verifier rejected a credential.
type VerifyError struct {
	// Verifier is the name of the rejecting verifier.
	Verifier string

	// Reason is one of the verification sentinels, e.g. ErrExpired.
	Reason error

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements error.
func (e *VerifyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Verifier, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Verifier, e.Reason)
}

// Unwrap returns the reason and the cause.
func (e *VerifyError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

func verifyError(verifier string, reason, cause error) *VerifyError {
	return &VerifyError{Verifier: verifier, Reason: reason, Cause: cause}
}
