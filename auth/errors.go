package auth

import "errors"

// Sentinel errors for authentication and authorization.
var (
	// ErrMissingCredentials indicates no credential was presented.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrMalformed indicates the credential is not a well-formed token.
	ErrMalformed = errors.New("auth: malformed credential")

	// ErrBadSignature indicates the signature does not verify against any
	// known key, or the algorithm is not allowed.
	ErrBadSignature = errors.New("auth: bad signature")

	// ErrExpired indicates the token is past its expiry.
	ErrExpired = errors.New("auth: token expired")

	// ErrNotYetValid indicates the token's not-before time is in the future.
	ErrNotYetValid = errors.New("auth: token not yet valid")

	// ErrWrongIssuer indicates the token was issued by another issuer.
	ErrWrongIssuer = errors.New("auth: wrong issuer")

	// ErrWrongAudience indicates the token was not issued for this audience.
	ErrWrongAudience = errors.New("auth: wrong audience")

	// ErrKeyFetch indicates the signing keys could not be obtained.
	ErrKeyFetch = errors.New("auth: key set unavailable")

	// ErrKeyNotFound indicates the key set has no key with the requested id.
	ErrKeyNotFound = errors.New("auth: signing key not found")

	// ErrUnrecognized indicates a static secret matched no configured entry.
	ErrUnrecognized = errors.New("auth: unrecognized credential")

	// ErrAuthenticationFailed is the single externally visible failure of
	// the composite verifier.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrForbidden indicates an authenticated identity may not perform the
	// operation.
	ErrForbidden = errors.New("auth: access denied")

	// ErrInsufficientScope indicates the identity lacks the required scope.
	ErrInsufficientScope = errors.New("auth: insufficient scope")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("auth: invalid configuration")
)

// reasons lists the verification failure sentinels with their metric
// label, most specific first.
var reasons = []struct {
	err   error
	label string
}{
	{ErrMissingCredentials, "missing"},
	{ErrKeyFetch, "key_fetch"},
	{ErrMalformed, "malformed"},
	{ErrBadSignature, "bad_signature"},
	{ErrExpired, "expired"},
	{ErrNotYetValid, "not_yet_valid"},
	{ErrWrongIssuer, "wrong_issuer"},
	{ErrWrongAudience, "wrong_audience"},
	{ErrUnrecognized, "unrecognized"},
}

// ReasonLabel returns a low-cardinality label for a verification result:
// "success" for nil, the reason class of a known failure, or "error".
func ReasonLabel(err error) string {
	if err == nil {
		return "success"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "error"
}
