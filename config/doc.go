// Package config loads toolgate configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// file, and TOOLGATE_-prefixed environment variables where nesting dots
// become underscores (TOOLGATE_AUTH_DISABLED, TOOLGATE_SERVER_ADDR).
//
// After loading, provider URLs and static secrets are passed through the
// secret resolver, so a config file can hold references such as
//
//	auth:
//	  static_secret:
//	    enabled: true
//	    secrets: ["secretref:env:API_KEY", "secretref:file:/run/secrets/api_key"]
//
// instead of the secrets themselves.
package config
