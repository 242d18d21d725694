package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/tools"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOOLGATE"

// ErrInvalidServerConfig indicates invalid server configuration.
var ErrInvalidServerConfig = errors.New("config: invalid server configuration")

// Config is the complete toolgate configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Auth    auth.Config    `mapstructure:"auth"`
	Observe observe.Config `mapstructure:"observe"`
	Secrets SecretsConfig  `mapstructure:"secrets"`
	Tools   ToolsConfig    `mapstructure:"tools"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`

	// ResourceURL is the public URL of this server, advertised as the
	// protected resource identifier.
	ResourceURL string `mapstructure:"resource_url"`

	// Name is the human-readable resource name.
	Name string `mapstructure:"name"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// HealthTimeout bounds each health check.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// SecretsConfig configures the secret providers.
type SecretsConfig struct {
	// EnvPrefix is prepended to names in secretref:env references.
	EnvPrefix string `mapstructure:"env_prefix"`

	// FileBaseDir anchors relative secretref:file references.
	FileBaseDir string `mapstructure:"file_base_dir"`
}

// ToolsConfig configures the tool surface.
type ToolsConfig struct {
	// CacheTTL is how long tool results are cached. Zero disables the
	// result cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: addr is required", ErrInvalidServerConfig))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeouts must not be negative", ErrInvalidServerConfig))
	}
	if c.Tools.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: tools.cache_ttl must not be negative", ErrInvalidServerConfig))
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.resource_url", "http://localhost:8080")
	v.SetDefault("server.name", "toolgate")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.health_timeout", 2*time.Second)

	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.static_secret.enabled", false)
	v.SetDefault("auth.static_secret.secrets", []string{})
	v.SetDefault("auth.static_secret.subject", auth.DefaultStaticSubject)
	v.SetDefault("auth.static_secret.scopes", []string{auth.DefaultStaticScope})
	v.SetDefault("auth.operation_scopes", map[string]string{})
	v.SetDefault("auth.key_cache.ttl", auth.DefaultKeySetTTL)
	v.SetDefault("auth.key_cache.grace_period", auth.DefaultGracePeriod)
	v.SetDefault("auth.key_cache.fetch_timeout", auth.DefaultFetchTimeout)
	v.SetDefault("auth.key_cache.min_refresh_interval", auth.DefaultMinRefreshInterval)
	v.SetDefault("auth.key_cache.max_failures", auth.DefaultFetchMaxFailures)
	v.SetDefault("auth.key_cache.fetch_attempts", auth.DefaultFetchAttempts)

	v.SetDefault("observe.service_name", "toolgate")
	v.SetDefault("observe.version", "dev")
	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", true)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")

	v.SetDefault("tools.cache_ttl", tools.DefaultCacheTTL)

	v.SetDefault("secrets.env_prefix", "")
	v.SetDefault("secrets.file_base_dir", "")
}
