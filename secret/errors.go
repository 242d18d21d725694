package secret

import "errors"

var (
	// ErrProviderNotRegistered indicates a secretref names an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrDuplicateProvider indicates a provider name was registered twice.
	ErrDuplicateProvider = errors.New("secret: provider already registered")

	// ErrInvalidRef indicates a malformed secret reference or registration.
	ErrInvalidRef = errors.New("secret: invalid reference")

	// ErrNotFound indicates the provider has no value for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrEmptyValue indicates a strict resolver received an empty value.
	ErrEmptyValue = errors.New("secret: empty value")

	// ErrMissingEnv indicates ${VAR} expansion referenced an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")
)
