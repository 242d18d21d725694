package authhttp

import (
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidAuthorization indicates a Bearer Authorization header with no
// usable token.
var ErrInvalidAuthorization = errors.New("authhttp: invalid authorization header")

// BearerToken returns the credential of a "Bearer" Authorization header.
// A missing header, or one using another scheme, yields "" and no error.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", nil
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", nil
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidAuthorization
	}
	return token, nil
}
