package auth

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultClockSkew is the tolerance applied to exp and nbf.
	DefaultClockSkew = 60 * time.Second

	// NoClockSkew disables clock skew tolerance.
	NoClockSkew time.Duration = -1

	// DefaultSubjectClaim is the claim read for the identity subject.
	DefaultSubjectClaim = "sub"
)

// DefaultAlgorithms are the asymmetric signature algorithms accepted when a
// provider does not configure its own list.
var DefaultAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// DefaultScopeClaims are the claims read for granted scopes.
var DefaultScopeClaims = []string{"scope", "scp", "scopes"}

// subjectFallbacks are read in order when the subject claim is absent.
var subjectFallbacks = []string{"client_id", "azp"}

// ProviderConfig describes one trusted token issuer.
type ProviderConfig struct {
	// Name identifies the provider in identities, logs and metrics.
	// Default: the issuer.
	Name string `mapstructure:"name"`

	// Issuer must equal the token's iss claim exactly.
	Issuer string `mapstructure:"issuer"`

	// JWKSURL is the key-set endpoint. When empty it is discovered from
	// the issuer's OpenID configuration.
	JWKSURL string `mapstructure:"jwks_url"`

	// Audience, when set, must be one of the token's aud values.
	Audience string `mapstructure:"audience"`

	// CacheTTL is how long a fetched key set is fresh. Default: the key
	// cache TTL.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Algorithms lists accepted signature algorithms. "none" is never
	// accepted. Default: DefaultAlgorithms.
	Algorithms []string `mapstructure:"algorithms"`

	// ScopeClaims lists claims read for granted scopes.
	// Default: DefaultScopeClaims.
	ScopeClaims []string `mapstructure:"scope_claims"`

	// SubjectClaim is the claim read for the subject. Default: "sub".
	SubjectClaim string `mapstructure:"subject_claim"`

	// ClockSkew is the tolerance applied to exp and nbf. Zero means
	// DefaultClockSkew; NoClockSkew disables tolerance.
	ClockSkew time.Duration `mapstructure:"clock_skew"`
}

// Validate checks the provider configuration.
func (c *ProviderConfig) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: provider %q: issuer is required", ErrInvalidConfig, c.Name)
	}
	if c.JWKSURL != "" {
		u, err := url.Parse(c.JWKSURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("%w: provider %q: jwks_url must be an absolute http(s) URL", ErrInvalidConfig, c.displayName())
		}
	}
	for _, alg := range c.Algorithms {
		if strings.EqualFold(alg, "none") {
			return fmt.Errorf("%w: provider %q: algorithm none is never accepted", ErrInvalidConfig, c.displayName())
		}
		if jwt.GetSigningMethod(alg) == nil {
			return fmt.Errorf("%w: provider %q: unknown algorithm %q", ErrInvalidConfig, c.displayName(), alg)
		}
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: provider %q: cache_ttl must not be negative", ErrInvalidConfig, c.displayName())
	}
	if c.ClockSkew < 0 && c.ClockSkew != NoClockSkew {
		return fmt.Errorf("%w: provider %q: clock_skew must not be negative", ErrInvalidConfig, c.displayName())
	}
	return nil
}

func (c *ProviderConfig) displayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Issuer
}

// withDefaults returns a copy with defaults applied and slices cloned.
func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Name == "" {
		c.Name = c.Issuer
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = DefaultAlgorithms
	}
	c.Algorithms = slices.DeleteFunc(slices.Clone(c.Algorithms), func(alg string) bool {
		return strings.EqualFold(alg, "none")
	})
	if len(c.ScopeClaims) == 0 {
		c.ScopeClaims = DefaultScopeClaims
	}
	c.ScopeClaims = slices.Clone(c.ScopeClaims)
	if c.SubjectClaim == "" {
		c.SubjectClaim = DefaultSubjectClaim
	}
	return c
}

func (c *ProviderConfig) skew() time.Duration {
	switch {
	case c.ClockSkew == 0:
		return DefaultClockSkew
	case c.ClockSkew < 0:
		return 0
	default:
		return c.ClockSkew
	}
}
