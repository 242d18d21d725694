package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
)

// Static secret defaults.
const (
	DefaultStaticSubject = "api-key-client"
	DefaultStaticScope   = "server-to-server"
)

// StaticSecretConfig configures the static shared-secret fallback.
type StaticSecretConfig struct {
	// Enabled turns the fallback on. Default: false.
	Enabled bool `mapstructure:"enabled"`

	// Secrets are the accepted shared secrets. Values may be secret
	// references such as "secretref:env:API_KEY".
	Secrets []string `mapstructure:"secrets"`

	// Subject is the subject of every identity. Default: "api-key-client".
	Subject string `mapstructure:"subject"`

	// Scopes are granted to every identity. Default: "server-to-server".
	Scopes []string `mapstructure:"scopes"`
}

// Validate checks the configuration. A disabled fallback is always valid.
func (c *StaticSecretConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Secrets) == 0 {
		return fmt.Errorf("%w: static_secret: at least one secret is required when enabled", ErrInvalidConfig)
	}
	for i, s := range c.Secrets {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: static_secret: secrets[%d] is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}

// StaticSecretVerifier accepts credentials equal to a configured secret.
//
// Only SHA-256 digests of the secrets are retained. Every digest is
// compared in constant time, so neither the match position nor the secret
// length is observable.
type StaticSecretVerifier struct {
	digests [][sha256.Size]byte
	subject string
	scopes  ScopeSet
}

var _ Verifier = (*StaticSecretVerifier)(nil)

// NewStaticSecretVerifier creates the verifier. cfg.Enabled is not
// consulted; callers decide whether to install it.
func NewStaticSecretVerifier(cfg StaticSecretConfig) (*StaticSecretVerifier, error) {
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &StaticSecretVerifier{
		digests: make([][sha256.Size]byte, len(cfg.Secrets)),
		subject: cfg.Subject,
		scopes:  NewScopeSet(cfg.Scopes...),
	}
	for i, s := range cfg.Secrets {
		v.digests[i] = sha256.Sum256([]byte(s))
	}
	if v.subject == "" {
		v.subject = DefaultStaticSubject
	}
	if len(cfg.Scopes) == 0 {
		v.scopes = NewScopeSet(DefaultStaticScope)
	}
	return v, nil
}

// Name returns "static-secret".
func (v *StaticSecretVerifier) Name() string { return StaticSecretProvider }

// Verify implements Verifier.
func (v *StaticSecretVerifier) Verify(_ context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, verifyError(StaticSecretProvider, ErrUnrecognized, nil)
	}

	sum := sha256.Sum256([]byte(credential))
	match := 0
	for i := range v.digests {
		match |= subtle.ConstantTimeCompare(sum[:], v.digests[i][:])
	}
	if match != 1 {
		return nil, verifyError(StaticSecretProvider, ErrUnrecognized, nil)
	}

	return &Identity{
		Subject:  v.subject,
		Provider: StaticSecretProvider,
		Method:   AuthMethodAPIKey,
		Scopes:   v.scopes,
	}, nil
}
