// Package secret resolves secret references in configuration values.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry); "env" and "file"
//     are built in
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Environment: secretref:env:TOOLGATE_API_KEY
//   - File:        secretref:file:/run/secrets/api_key
//
// Static API keys in toolgate configuration are normally given this way so
// the key itself never appears in a config file.
package secret
