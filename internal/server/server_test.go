package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/authhttp"
	"github.com/jonwraymond/toolgate/config"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/tools"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:            "127.0.0.1:0",
			ResourceURL:     "https://tools.example.com",
			Name:            "toolgate",
			HealthTimeout:   time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: auth.Config{
			StaticSecret: auth.StaticSecretConfig{
				Enabled: true,
				Secrets: []string{"reader-key", "s2s-key"},
				Scopes:  []string{"weather:read"},
			},
		},
		Observe: observe.Config{ServiceName: "toolgate-test"},
		Tools:   config.ToolsConfig{CacheTTL: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		header     map[string]string
		body       string
		wantCode   int
		wantBody   string
		wantHeader string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantCode: http.StatusOK},
		{name: "metadata", method: http.MethodGet, path: authhttp.MetadataPath, wantCode: http.StatusOK, wantBody: `"resource":"https://tools.example.com"`},
		{name: "list requires credentials", method: http.MethodGet, path: "/tools", wantCode: http.StatusUnauthorized, wantHeader: "Bearer"},
		{
			name: "list with bearer", method: http.MethodGet, path: "/tools",
			header:   map[string]string{"Authorization": "Bearer reader-key"},
			wantCode: http.StatusOK, wantBody: tools.GetForecast,
		},
		{
			name: "invoke with api key header", method: http.MethodPost, path: "/tools/get_weather",
			header:   map[string]string{APIKeyHeader: "s2s-key"},
			body:     `{"city":"Lisbon"}`,
			wantCode: http.StatusOK, wantBody: `"auth_method":"api_key"`,
		},
		{
			name: "invoke with unknown secret", method: http.MethodPost, path: "/tools/get_weather",
			header:   map[string]string{"Authorization": "Bearer nope"},
			body:     `{"city":"Lisbon"}`,
			wantCode: http.StatusUnauthorized, wantHeader: "invalid_token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body %s missing %s", rec.Body, tt.wantBody)
			}
			if tt.wantHeader != "" && !strings.Contains(rec.Header().Get("WWW-Authenticate"), tt.wantHeader) {
				t.Fatalf("WWW-Authenticate = %q, want %q", rec.Header().Get("WWW-Authenticate"), tt.wantHeader)
			}
			if rec.Header().Get(authhttp.RequestIDHeader) == "" {
				t.Fatal("missing request id")
			}
		})
	}
}

func TestServer_InsufficientScope(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.StaticSecret.Scopes = nil
	s := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/tools/get_forecast", strings.NewReader(`{"city":"Lisbon","days":2}`))
	req.Header.Set("Authorization", "Bearer reader-key")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, `scope="weather:read"`) {
		t.Fatalf("WWW-Authenticate = %q", got)
	}
}

func TestServer_AuthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = auth.Config{Disabled: true}
	s := newTestServer(t, cfg)

	if !s.Stack().Guard.Disabled() {
		t.Fatal("expected open guard")
	}

	ready := httptest.NewRecorder()
	s.Handler().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if ready.Code != http.StatusOK || ready.Body.String() != "DEGRADED" {
		t.Fatalf("readyz = %d %q, want 200 DEGRADED", ready.Code, ready.Body)
	}

	req := httptest.NewRequest(http.MethodPost, "/tools/get_forecast", strings.NewReader(`{"city":"Lisbon","days":2}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	var resp tools.InvokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AuthMethod != string(auth.AuthMethodAnonymous) {
		t.Fatalf("auth_method = %q", resp.AuthMethod)
	}
}

func TestServer_KeyCachesRegisteredForHealth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Providers = []auth.ProviderConfig{{
		Name:    "corp",
		Issuer:  "https://issuer.example.com",
		JWKSURL: "https://issuer.example.com/.well-known/jwks.json",
	}}
	s := newTestServer(t, cfg)

	names := s.Health().CheckerNames()
	if len(names) != 2 || names[0] != "auth" || names[1] != "keyset:issuer.example.com" {
		t.Fatalf("checkers = %v", names)
	}

	// Nothing fetched yet, so readiness fails.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
}

func TestServer_RunShutsDown(t *testing.T) {
	s := newTestServer(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
