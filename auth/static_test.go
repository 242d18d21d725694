package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticSecretVerifier(t *testing.T) {
	v, err := NewStaticSecretVerifier(StaticSecretConfig{Secrets: []string{"first-secret", "second-secret"}})
	if err != nil {
		t.Fatalf("NewStaticSecretVerifier: %v", err)
	}
	ctx := context.Background()

	for _, secret := range []string{"first-secret", "second-secret"} {
		id, err := v.Verify(ctx, secret)
		if err != nil {
			t.Fatalf("Verify(%s): %v", secret, err)
		}
		if id.Subject != DefaultStaticSubject || id.Provider != StaticSecretProvider || id.Method != AuthMethodAPIKey {
			t.Errorf("identity = %+v", id)
		}
		if !id.HasScope(DefaultStaticScope) || id.Scopes.Len() != 1 {
			t.Errorf("scopes = %v", id.Scopes)
		}
	}

	for _, bad := range []string{"", "first-secre", "first-secret ", "FIRST-SECRET", "eyJhbGciOiJSUzI1NiJ9.e30.sig"} {
		if _, err := v.Verify(ctx, bad); !errors.Is(err, ErrUnrecognized) {
			t.Errorf("Verify(%q) = %v, want ErrUnrecognized", bad, err)
		}
	}
}

func TestStaticSecretVerifier_CustomIdentity(t *testing.T) {
	v, err := NewStaticSecretVerifier(StaticSecretConfig{
		Secrets: []string{"s"},
		Subject: "batch-job",
		Scopes:  []string{"weather:read", "user"},
	})
	if err != nil {
		t.Fatal(err)
	}
	id, err := v.Verify(context.Background(), "s")
	if err != nil {
		t.Fatal(err)
	}
	if id.Subject != "batch-job" || id.Scopes.String() != "user weather:read" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestStaticSecretConfig_Validate(t *testing.T) {
	if err := (&StaticSecretConfig{}).Validate(); err != nil {
		t.Errorf("disabled config = %v, want nil", err)
	}
	if err := (&StaticSecretConfig{Enabled: true}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("no secrets = %v, want ErrInvalidConfig", err)
	}
	if err := (&StaticSecretConfig{Enabled: true, Secrets: []string{"ok", "  "}}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("blank secret = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewStaticSecretVerifier(StaticSecretConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewStaticSecretVerifier without secrets = %v", err)
	}
}
