package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jonwraymond/toolgate/secret"
)

// LoaderOption configures Load.
type LoaderOption func(*loader)

type loader struct {
	file     string
	registry *secret.Registry
}

// WithConfigFile loads path before applying environment overrides. A
// missing explicit file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(l *loader) { l.file = path }
}

// WithSecretRegistry replaces the registry that creates secret providers.
// Default: secret.NewDefaultRegistry().
func WithSecretRegistry(r *secret.Registry) LoaderOption {
	return func(l *loader) {
		if r != nil {
			l.registry = r
		}
	}
}

// Load reads, resolves and validates the configuration.
func Load(ctx context.Context, opts ...LoaderOption) (*Config, error) {
	l := loader{registry: secret.NewDefaultRegistry()}
	for _, opt := range opts {
		opt(&l)
	}

	v := viper.New()
	setDefaults(v)
	if l.file != "" {
		v.SetConfigFile(l.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.file, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := resolveSecrets(ctx, &cfg, l.registry); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveSecrets(ctx context.Context, cfg *Config, registry *secret.Registry) error {
	envProvider, err := registry.Create("env", map[string]any{"prefix": cfg.Secrets.EnvPrefix})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fileProvider, err := registry.Create("file", map[string]any{"base_dir": cfg.Secrets.FileBaseDir})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	resolver := secret.NewResolver(true, envProvider, fileProvider)
	defer resolver.Close()

	for i := range cfg.Auth.Providers {
		p := &cfg.Auth.Providers[i]
		for _, field := range []*string{&p.Issuer, &p.JWKSURL, &p.Audience} {
			if *field == "" {
				continue
			}
			if *field, err = resolver.ResolveValue(ctx, *field); err != nil {
				return fmt.Errorf("config: auth.providers[%d]: %w", i, err)
			}
		}
	}

	if cfg.Auth.StaticSecret.Enabled {
		secrets, err := resolver.ResolveSlice(ctx, cfg.Auth.StaticSecret.Secrets)
		if err != nil {
			return fmt.Errorf("config: auth.static_secret.secrets: %w", err)
		}
		cfg.Auth.StaticSecret.Secrets = secrets
	}
	return nil
}
