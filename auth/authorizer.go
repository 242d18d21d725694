package auth

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AuthzRequest asks whether Subject may perform Operation.
type AuthzRequest struct {
	Subject   *Identity
	Operation string
}

// Authorizer decides whether an authenticated identity may perform an
// operation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: denials match ErrForbidden.
type Authorizer interface {
	Authorize(ctx context.Context, req *AuthzRequest) error
	Name() string
}

// AuthzError describes a denied operation.
type AuthzError struct {
	Subject       string
	Operation     string
	RequiredScope string
	Reason        string
}

// Error implements error.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %s may not %s: %s", e.Subject, e.Operation, e.Reason)
}

// Is matches ErrForbidden, and ErrInsufficientScope when a scope was
// required.
func (e *AuthzError) Is(target error) bool {
	if target == ErrForbidden {
		return true
	}
	return target == ErrInsufficientScope && e.RequiredScope != ""
}

// CheckScope reports whether identity holds required. An empty requirement
// allows any authenticated identity.
func CheckScope(identity *Identity, required string) error {
	if identity == nil {
		return &AuthzError{RequiredScope: NormalizeScope(required), Reason: "not authenticated"}
	}
	required = NormalizeScope(required)
	if required == "" || identity.Scopes.Contains(required) {
		return nil
	}
	return &AuthzError{
		Subject:       identity.Subject,
		RequiredScope: required,
		Reason:        fmt.Sprintf("scope %q required", required),
	}
}

// ScopeAuthorizer maps operations to required scopes. Operations without
// an entry require no scope. Operation names match case-insensitively.
type ScopeAuthorizer struct {
	required map[string]string
}

var _ Authorizer = (*ScopeAuthorizer)(nil)

// NewScopeAuthorizer creates an authorizer from operation → scope. Empty
// scopes are treated as no requirement.
func NewScopeAuthorizer(operationScopes map[string]string) *ScopeAuthorizer {
	a := &ScopeAuthorizer{required: make(map[string]string, len(operationScopes))}
	for op, scope := range operationScopes {
		if s := NormalizeScope(scope); s != "" {
			a.required[NormalizeOperation(op)] = s
		}
	}
	return a
}

// Name returns "scope".
func (a *ScopeAuthorizer) Name() string { return "scope" }

// RequiredScope returns the scope operation requires, or "".
func (a *ScopeAuthorizer) RequiredScope(operation string) string {
	return a.required[NormalizeOperation(operation)]
}

// NormalizeOperation folds an operation name to the form used as a
// lookup key. Configuration loaders lowercase map keys, so operation
// names compare case-insensitively.
func NormalizeOperation(operation string) string {
	return strings.ToLower(strings.TrimSpace(operation))
}

// Scopes returns every required scope, sorted and unique.
func (a *ScopeAuthorizer) Scopes() []string {
	out := slices.Sorted(maps.Values(a.required))
	return slices.Compact(out)
}

// Authorize implements Authorizer.
func (a *ScopeAuthorizer) Authorize(_ context.Context, req *AuthzRequest) error {
	if req == nil {
		return &AuthzError{Reason: "no request"}
	}
	err := CheckScope(req.Subject, a.RequiredScope(req.Operation))
	if ae, ok := err.(*AuthzError); ok {
		ae.Operation = req.Operation
	}
	return err
}
