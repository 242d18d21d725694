package auth

import (
	"errors"
	"fmt"
)

// Config configures the authentication stack.
type Config struct {
	// Disabled turns authentication off: every request is authorized as
	// the anonymous identity.
	Disabled bool `mapstructure:"disabled"`

	// Providers are the trusted token issuers, tried in order.
	Providers []ProviderConfig `mapstructure:"providers"`

	// StaticSecret is the shared-secret fallback, tried last.
	StaticSecret StaticSecretConfig `mapstructure:"static_secret"`

	// OperationScopes maps operations to the scope they require.
	OperationScopes map[string]string `mapstructure:"operation_scopes"`

	// KeyCache tunes the key-set caches of every provider.
	KeyCache KeyCacheSettings `mapstructure:"key_cache"`
}

// Validate checks the configuration. A disabled configuration is valid.
func (c *Config) Validate() error {
	if c.Disabled {
		return nil
	}

	var errs []error
	if len(c.Providers) == 0 && !c.StaticSecret.Enabled {
		errs = append(errs, fmt.Errorf("%w: no providers configured and static secret disabled", ErrInvalidConfig))
	}

	names := make(map[string]bool, len(c.Providers))
	jwks := make(map[string]string, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		name := p.displayName()
		if names[name] {
			errs = append(errs, fmt.Errorf("%w: duplicate provider name %q", ErrInvalidConfig, name))
		}
		names[name] = true
		if u, seen := jwks[p.Issuer]; seen && u != p.JWKSURL {
			errs = append(errs, fmt.Errorf("%w: issuer %s configured with different jwks_url values", ErrInvalidConfig, p.Issuer))
		}
		jwks[p.Issuer] = p.JWKSURL
	}

	ops := make(map[string]string, len(c.OperationScopes))
	for op, scope := range c.OperationScopes {
		key := NormalizeOperation(op)
		if key == "" {
			errs = append(errs, fmt.Errorf("%w: operation_scopes has a blank operation", ErrInvalidConfig))
			continue
		}
		scope = NormalizeScope(scope)
		if prev, seen := ops[key]; seen && prev != scope {
			errs = append(errs, fmt.Errorf("%w: operation %q mapped to conflicting scopes", ErrInvalidConfig, key))
		}
		ops[key] = scope
	}

	if err := c.StaticSecret.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.KeyCache.TTL < 0 || c.KeyCache.FetchTimeout < 0 || c.KeyCache.MinRefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: key_cache durations must not be negative", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}
