package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoneAlgorithm = errors.New("algorithm none is not accepted")
	errAlgMismatch   = errors.New("key algorithm does not match token")
)

// JWTVerifier verifies JWTs issued by one provider.
//
// The signature is checked against the issuer's key set before any claim
// is trusted. Claims are then checked in order: issuer, audience, expiry,
// not-before.
type JWTVerifier struct {
	cfg    ProviderConfig
	keys   KeySource
	parser *jwt.Parser
	skew   time.Duration
	now    func() time.Time
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier creates a verifier for cfg that resolves signing keys from
// keys.
func NewJWTVerifier(cfg ProviderConfig, keys KeySource, opts ...Option) (*JWTVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, fmt.Errorf("%w: provider %q: key source is required", ErrInvalidConfig, cfg.displayName())
	}
	o := newOptions(opts)
	cfg = cfg.withDefaults()

	return &JWTVerifier{
		cfg:  cfg,
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods(cfg.Algorithms),
			jwt.WithoutClaimsValidation(),
		),
		skew: cfg.skew(),
		now:  o.now,
	}, nil
}

// Name returns the provider name.
func (v *JWTVerifier) Name() string { return v.cfg.Name }

// Config returns a copy of the provider configuration in effect.
func (v *JWTVerifier) Config() ProviderConfig {
	cfg := v.cfg
	cfg.Algorithms = slices.Clone(cfg.Algorithms)
	cfg.ScopeClaims = slices.Clone(cfg.ScopeClaims)
	return cfg
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	if strings.Count(credential, ".") != 2 {
		return nil, v.fail(ErrMalformed, nil)
	}

	token, err := v.parser.Parse(credential, v.keyFunc(ctx))
	if err != nil {
		return nil, v.fail(classifyParseError(token, err), err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, v.fail(ErrMalformed, nil)
	}
	return v.checkClaims(claims)
}

func (v *JWTVerifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		alg := token.Method.Alg()
		if strings.EqualFold(alg, "none") {
			return nil, errNoneAlgorithm
		}
		// Tokens of other issuers never reach this issuer's key cache.
		if iss, err := token.Claims.GetIssuer(); err == nil && iss != v.cfg.Issuer {
			return nil, ErrWrongIssuer
		}
		kid, _ := token.Header["kid"].(string)

		key, err := v.keys.GetKey(ctx, v.cfg.Issuer, kid)
		if err != nil {
			return nil, err
		}
		if key.Algorithm != "" && key.Algorithm != alg {
			return nil, fmt.Errorf("%w: key %q is %s, token is %s", errAlgMismatch, kid, key.Algorithm, alg)
		}
		return key.Key, nil
	}
}

func classifyParseError(token *jwt.Token, err error) error {
	switch {
	case errors.Is(err, ErrKeyFetch):
		return ErrKeyFetch
	case errors.Is(err, ErrWrongIssuer):
		return ErrWrongIssuer
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case token != nil && token.Header["alg"] == nil:
		return ErrMalformed
	default:
		return ErrBadSignature
	}
}

func (v *JWTVerifier) checkClaims(claims jwt.MapClaims) (*Identity, error) {
	iss, err := claims.GetIssuer()
	if err != nil {
		return nil, v.fail(ErrMalformed, err)
	}
	if iss != v.cfg.Issuer {
		return nil, v.fail(ErrWrongIssuer, nil)
	}

	if v.cfg.Audience != "" {
		aud, err := claims.GetAudience()
		if err != nil {
			return nil, v.fail(ErrMalformed, err)
		}
		if !slices.Contains(aud, v.cfg.Audience) {
			return nil, v.fail(ErrWrongAudience, nil)
		}
	}

	now := v.now()
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, v.fail(ErrMalformed, err)
	}
	if exp == nil {
		return nil, v.fail(ErrMalformed, errors.New("exp claim is required"))
	}
	if !now.Before(exp.Add(v.skew)) {
		return nil, v.fail(ErrExpired, nil)
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, v.fail(ErrMalformed, err)
	}
	if nbf != nil && now.Before(nbf.Add(-v.skew)) {
		return nil, v.fail(ErrNotYetValid, nil)
	}

	var scopes ScopeSet
	for _, name := range v.cfg.ScopeClaims {
		s, err := ParseScopes(claims[name])
		if err != nil {
			return nil, v.fail(ErrMalformed, fmt.Errorf("claim %s: %w", name, err))
		}
		scopes = scopes.Union(s)
	}

	subject := v.subject(claims)
	if subject == "" {
		return nil, v.fail(ErrMalformed, errors.New("no subject claim"))
	}

	return &Identity{
		Subject:   subject,
		Provider:  v.cfg.Name,
		Issuer:    iss,
		Method:    AuthMethodJWT,
		Scopes:    scopes,
		ExpiresAt: exp.Time,
		Claims:    maps.Clone(map[string]any(claims)),
	}, nil
}

func (v *JWTVerifier) subject(claims jwt.MapClaims) string {
	if s, _ := claims[v.cfg.SubjectClaim].(string); s != "" {
		return s
	}
	for _, name := range subjectFallbacks {
		if s, _ := claims[name].(string); s != "" {
			return s
		}
	}
	return ""
}

func (v *JWTVerifier) fail(reason, cause error) error {
	return verifyError(v.cfg.Name, reason, cause)
}
