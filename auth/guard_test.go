package auth

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestGuard(t *testing.T, metrics *recordingMetrics, recorder *tracetest.SpanRecorder) *Guard {
	t.Helper()
	static, err := NewStaticSecretVerifier(StaticSecretConfig{Secrets: []string{"reader-key"}, Scopes: []string{"weather:read"}})
	if err != nil {
		t.Fatal(err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	opts := []Option{WithMetrics(metrics), WithTracer(tp.Tracer("test"))}
	authz := NewScopeAuthorizer(map[string]string{"get_weather": "weather:read", "delete_city": "weather:admin"})
	return NewGuard(NewCompositeVerifier([]Verifier{static}, opts...), authz, opts...)
}

func TestGuard_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		operation  string
		want       Status
		wantErr    error
	}{
		{"authorized", "reader-key", "get_weather", StatusAuthorized, nil},
		{"public operation", "reader-key", "list_tools", StatusAuthorized, nil},
		{"credential with padding", "  reader-key ", "get_weather", StatusAuthorized, nil},
		{"missing credential", "", "get_weather", StatusUnauthenticated, ErrMissingCredentials},
		{"blank credential", "   ", "list_tools", StatusUnauthenticated, ErrMissingCredentials},
		{"rejected credential", "wrong-key", "get_weather", StatusUnauthenticated, ErrAuthenticationFailed},
		{"insufficient scope", "reader-key", "delete_city", StatusForbidden, ErrInsufficientScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			recorder := tracetest.NewSpanRecorder()
			g := newTestGuard(t, metrics, recorder)

			d := g.Evaluate(context.Background(), tt.credential, tt.operation)
			if d.Status != tt.want {
				t.Fatalf("Status = %v, want %v (err %v)", d.Status, tt.want, d.Err)
			}
			if tt.wantErr == nil && d.Err != nil {
				t.Fatalf("Err = %v, want nil", d.Err)
			}
			if tt.wantErr != nil && !errors.Is(d.Err, tt.wantErr) {
				t.Fatalf("Err = %v, want %v", d.Err, tt.wantErr)
			}
			if d.Allowed() != (tt.want == StatusAuthorized) {
				t.Errorf("Allowed() = %v", d.Allowed())
			}
			if tt.want != StatusUnauthenticated && d.Identity == nil {
				t.Error("authenticated decision has no identity")
			}

			if want := []string{tt.operation + "=" + tt.want.String()}; !slices.Equal(metrics.decisions, want) {
				t.Errorf("decisions = %v, want %v", metrics.decisions, want)
			}
			spans := recorder.Ended()
			if len(spans) != 1 || spans[0].Name() != "auth.evaluate" {
				t.Fatalf("spans = %v", spans)
			}
			if !slices.Contains(spans[0].Attributes(), attribute.String("auth.status", tt.want.String())) {
				t.Errorf("span attributes = %v", spans[0].Attributes())
			}
		})
	}
}

func TestGuard_MissingCredentialSkipsVerifiers(t *testing.T) {
	v := &stubVerifier{name: "stub", id: &Identity{Subject: "x"}}
	g := NewGuard(NewCompositeVerifier([]Verifier{v}), NewScopeAuthorizer(nil))

	d := g.Evaluate(context.Background(), "", "op")
	if d.Status != StatusUnauthenticated || v.calls.Load() != 0 {
		t.Fatalf("decision = %+v, verifier calls = %d", d, v.calls.Load())
	}
}

func TestOpenGuard(t *testing.T) {
	g := NewOpenGuard(NewScopeAuthorizer(map[string]string{"get_weather": "weather:read"}))
	if !g.Disabled() {
		t.Fatal("Disabled() = false")
	}
	for _, cred := range []string{"", "anything"} {
		d := g.Evaluate(context.Background(), cred, "get_weather")
		if !d.Allowed() || !d.Identity.IsAnonymous() || d.RequiredScope != "weather:read" {
			t.Fatalf("Evaluate(%q) = %+v", cred, d)
		}
	}
}

func TestStatus_String(t *testing.T) {
	var zero Status
	if zero.String() != "unauthenticated" {
		t.Errorf("zero Status = %q, want unauthenticated", zero)
	}
	if StatusForbidden.String() != "forbidden" || StatusAuthorized.String() != "authorized" {
		t.Error("unexpected status strings")
	}
}
