package authhttp

import (
	"errors"
	"strings"

	"github.com/jonwraymond/toolgate/auth"
)

// OAuth 2.0 bearer token error codes (RFC 6750 section 3.1).
const (
	ErrorInvalidRequest    = "invalid_request"
	ErrorInvalidToken      = "invalid_token"
	ErrorInsufficientScope = "insufficient_scope"
)

// challenge builds a WWW-Authenticate value for the Bearer scheme.
type challenge struct {
	params [][2]string
}

func (c *challenge) add(name, value string) {
	if value != "" {
		c.params = append(c.params, [2]string{name, value})
	}
}

func (c *challenge) String() string {
	if len(c.params) == 0 {
		return "Bearer"
	}
	var b strings.Builder
	b.WriteString("Bearer ")
	for i, p := range c.params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p[0])
		b.WriteString(`="`)
		b.WriteString(quoteEscape(p[1]))
		b.WriteByte('"')
	}
	return b.String()
}

// quoteEscape escapes a value for an HTTP quoted-string.
func quoteEscape(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Challenge returns the WWW-Authenticate value for a denied decision.
// Missing credentials get no error code; rejected credentials get
// invalid_token; forbidden decisions get insufficient_scope with the
// required scope.
func Challenge(realm, resourceMetadata string, d auth.Decision) string {
	var c challenge
	c.add("realm", realm)
	c.add("resource_metadata", resourceMetadata)

	switch d.Status {
	case auth.StatusForbidden:
		c.add("error", ErrorInsufficientScope)
		c.add("error_description", "the token lacks the required scope")
		c.add("scope", d.RequiredScope)
	case auth.StatusUnauthenticated:
		if d.Err != nil && !errors.Is(d.Err, auth.ErrMissingCredentials) {
			c.add("error", ErrorInvalidToken)
			c.add("error_description", "authentication failed")
		}
	}
	return c.String()
}
