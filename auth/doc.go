// Package auth authenticates bearer credentials and authorizes operations
// by scope.
//
// A request credential is offered to an ordered list of verifiers. The
// first verifier that accepts it produces an Identity; when none accepts
// it the request is rejected with ErrAuthenticationFailed. An authenticated
// Identity is then checked against the scope required by the requested
// operation.
//
// # Verifiers
//
//   - JWTVerifier checks a signed JWT against one issuer's published key
//     set, then its issuer, audience and validity window.
//   - StaticSecretVerifier matches the credential against a configured
//     list of shared secrets in constant time.
//   - CompositeVerifier tries verifiers in order and stops at the first
//     success.
//
// # Key Sets
//
// Signing keys are fetched from each issuer's JWKS endpoint and held in a
// KeyCache. Snapshots are replaced atomically; concurrent misses share one
// fetch. When the endpoint is unreachable the last snapshot keeps serving
// for a grace period and the cache reports itself degraded:
//
//	keyring := stack.Keyring
//	go keyring.Run(ctx)
//	for _, c := range keyring.Caches() {
//		agg.Register(c)
//	}
//
// # Decisions
//
// Guard combines both steps into a single Decision per request:
//
//	stack, err := auth.Build(ctx, cfg, auth.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	d := stack.Guard.Evaluate(ctx, credential, "get_weather")
//	switch d.Status {
//	case auth.StatusUnauthenticated:
//		// 401
//	case auth.StatusForbidden:
//		// 403
//	}
//
// Credentials are never logged and never appear in error messages.
package auth
