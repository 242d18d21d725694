package auth

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestCheckScope(t *testing.T) {
	id := &Identity{Subject: "u", Scopes: NewScopeSet("weather:read")}

	tests := []struct {
		name     string
		identity *Identity
		required string
		want     error
	}{
		{"granted", id, "weather:read", nil},
		{"granted case-insensitively", id, "Weather:Read", nil},
		{"no requirement", id, "", nil},
		{"missing scope", id, "weather:write", ErrInsufficientScope},
		{"no identity", nil, "weather:read", ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckScope(tt.identity, tt.required)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CheckScope = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrForbidden) {
				t.Fatalf("CheckScope = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScopeAuthorizer(t *testing.T) {
	a := NewScopeAuthorizer(map[string]string{
		"get_weather":  "Weather:Read",
		"get_forecast": "weather:read",
		"echo":         "",
	})
	ctx := context.Background()
	reader := &Identity{Subject: "reader", Scopes: NewScopeSet("weather:read")}
	nobody := &Identity{Subject: "nobody"}

	if err := a.Authorize(ctx, &AuthzRequest{Subject: reader, Operation: "get_weather"}); err != nil {
		t.Errorf("reader get_weather = %v", err)
	}
	if err := a.Authorize(ctx, &AuthzRequest{Subject: nobody, Operation: "echo"}); err != nil {
		t.Errorf("public echo = %v", err)
	}
	if err := a.Authorize(ctx, &AuthzRequest{Subject: nobody, Operation: "unmapped"}); err != nil {
		t.Errorf("unmapped operation = %v", err)
	}

	err := a.Authorize(ctx, &AuthzRequest{Subject: nobody, Operation: "get_forecast"})
	var ae *AuthzError
	if !errors.As(err, &ae) {
		t.Fatalf("Authorize = %v, want *AuthzError", err)
	}
	if ae.Operation != "get_forecast" || ae.RequiredScope != "weather:read" || ae.Subject != "nobody" {
		t.Errorf("AuthzError = %+v", ae)
	}

	if got := a.RequiredScope("get_weather"); got != "weather:read" {
		t.Errorf("RequiredScope = %q", got)
	}
	if got := a.Scopes(); !slices.Equal(got, []string{"weather:read"}) {
		t.Errorf("Scopes() = %v", got)
	}
	if err := a.Authorize(ctx, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("nil request = %v", err)
	}
}

func TestScopeAuthorizer_OperationCase(t *testing.T) {
	a := NewScopeAuthorizer(map[string]string{"GetForecast": "weather:admin"})
	reader := &Identity{Subject: "reader", Scopes: NewScopeSet("weather:read")}

	for _, op := range []string{"GetForecast", "getforecast", "GETFORECAST", " GetForecast "} {
		if got := a.RequiredScope(op); got != "weather:admin" {
			t.Errorf("RequiredScope(%q) = %q", op, got)
		}
		err := a.Authorize(context.Background(), &AuthzRequest{Subject: reader, Operation: op})
		if !errors.Is(err, ErrInsufficientScope) {
			t.Errorf("Authorize(%q) = %v, want ErrInsufficientScope", op, err)
		}
	}
}
