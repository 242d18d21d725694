// Package authhttp adapts the auth guard to net/http.
//
// The middleware extracts a bearer credential, asks the guard for a
// decision, and maps it to a response:
//
//   - unauthenticated: 401 with a WWW-Authenticate challenge (RFC 6750)
//   - forbidden: 403 with error="insufficient_scope" and the required scope
//   - authorized: the identity is stored in the request context
//
// Challenges and bodies never say why a credential was rejected.
//
// The package also serves the OAuth 2.0 Protected Resource Metadata
// document (RFC 9728) so clients can find the trusted issuers, and
// assigns request ids for log correlation.
package authhttp
