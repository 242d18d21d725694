package auth

import "time"

// AuthMethod identifies how an identity was authenticated.
type AuthMethod string

const (
	// AuthMethodJWT is a signed JWT bearer token.
	AuthMethodJWT AuthMethod = "jwt"
	// AuthMethodAPIKey is a static shared secret.
	AuthMethodAPIKey AuthMethod = "api_key"
	// AuthMethodAnonymous is used when authentication is disabled.
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// StaticSecretProvider is the Provider of identities produced by the
// static-secret verifier.
const StaticSecretProvider = "static-secret"

// Identity is the result of a successful verification. It is never
// modified after construction; Claims must be treated as read-only.
type Identity struct {
	// Subject is the principal: the token subject or client id.
	Subject string

	// Provider names the verifier configuration that accepted the credential.
	Provider string

	// Issuer is the token issuer. Empty for static secrets.
	Issuer string

	// Method is the authentication method.
	Method AuthMethod

	// Scopes is the normalized set of granted scopes.
	Scopes ScopeSet

	// ExpiresAt is the token expiry. Zero for static secrets.
	ExpiresAt time.Time

	// Claims holds the verified token claims.
	Claims map[string]any
}

// HasScope reports whether the identity was granted scope.
func (id *Identity) HasScope(scope string) bool {
	if id == nil {
		return false
	}
	return id.Scopes.Contains(scope)
}

// IsAnonymous reports whether this is the anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == AuthMethodAnonymous
}

// AnonymousIdentity returns the identity used when authentication is
// disabled.
func AnonymousIdentity() *Identity {
	return &Identity{
		Subject:  "anonymous",
		Provider: "anonymous",
		Method:   AuthMethodAnonymous,
	}
}
