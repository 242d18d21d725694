package auth

import (
	"context"

	"github.com/jonwraymond/toolgate/observe"
)

// Stack is an assembled authentication stack.
type Stack struct {
	Guard      *Guard
	Composite  *CompositeVerifier
	Authorizer *ScopeAuthorizer
	Keyring    *Keyring
}

// Build validates cfg and assembles the stack: one key cache per issuer,
// one JWT verifier per provider in order, the static-secret verifier last
// when enabled, the scope authorizer and the guard.
//
// Build performs no network I/O; key sets are fetched on first use or by
// Keyring.Warm.
func Build(ctx context.Context, cfg Config, opts ...Option) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	authz := NewScopeAuthorizer(cfg.OperationScopes)

	if cfg.Disabled {
		return &Stack{
			Guard:      NewOpenGuard(authz, opts...),
			Composite:  NewCompositeVerifier(nil, opts...),
			Authorizer: authz,
			Keyring:    NewKeyring(),
		}, nil
	}

	// Providers sharing an issuer share a cache with the shortest TTL.
	ttls := make(map[string]KeyCacheConfig)
	var issuers []string
	for _, p := range cfg.Providers {
		kc, seen := ttls[p.Issuer]
		if !seen {
			kc = KeyCacheConfig{KeyCacheSettings: cfg.KeyCache, Issuer: p.Issuer, JWKSURL: p.JWKSURL}
			issuers = append(issuers, p.Issuer)
		}
		if p.CacheTTL > 0 && (kc.TTL <= 0 || p.CacheTTL < kc.TTL) {
			kc.TTL = p.CacheTTL
		}
		ttls[p.Issuer] = kc
	}
	caches := make([]*KeyCache, 0, len(issuers))
	for _, iss := range issuers {
		caches = append(caches, NewKeyCache(ttls[iss], opts...))
	}
	keyring := NewKeyring(caches...)

	verifiers := make([]Verifier, 0, len(cfg.Providers)+1)
	for _, p := range cfg.Providers {
		v, err := NewJWTVerifier(p, keyring, opts...)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if cfg.StaticSecret.Enabled {
		sv, err := NewStaticSecretVerifier(cfg.StaticSecret)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, sv)
		o.logger.Warn(ctx, "static secret fallback enabled", observe.F("secret_count", len(cfg.StaticSecret.Secrets)))
	}

	composite := NewCompositeVerifier(verifiers, opts...)
	o.logger.Info(ctx, "authentication configured",
		observe.F("verifiers", composite.Verifiers()),
		observe.F("issuers", issuers))

	return &Stack{
		Guard:      NewGuard(composite, authz, opts...),
		Composite:  composite,
		Authorizer: authz,
		Keyring:    keyring,
	}, nil
}
