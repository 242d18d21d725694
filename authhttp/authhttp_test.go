package authhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/observe"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer   token  ", "token", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer", "", true},
		{"Bearer   ", "", true},
		{"Bearer two tokens", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("BearerToken(%q) = (%q, %v)", tt.header, got, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidAuthorization) {
				t.Fatalf("err = %v, want ErrInvalidAuthorization", err)
			}
		})
	}
}

func TestChallenge(t *testing.T) {
	const prm = "https://api.example.com/.well-known/oauth-protected-resource"

	tests := []struct {
		name string
		d    auth.Decision
		want string
	}{
		{
			"missing credentials",
			auth.Decision{Status: auth.StatusUnauthenticated, Err: auth.ErrMissingCredentials},
			`Bearer realm="toolgate", resource_metadata="` + prm + `"`,
		},
		{
			"rejected credential",
			auth.Decision{Status: auth.StatusUnauthenticated, Err: &auth.FailureError{}},
			`Bearer realm="toolgate", resource_metadata="` + prm + `", error="invalid_token", error_description="authentication failed"`,
		},
		{
			"insufficient scope",
			auth.Decision{Status: auth.StatusForbidden, RequiredScope: "weather:read"},
			`Bearer realm="toolgate", resource_metadata="` + prm + `", error="insufficient_scope", error_description="the token lacks the required scope", scope="weather:read"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Challenge("toolgate", prm, tt.d); got != tt.want {
				t.Fatalf("Challenge =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}

	if got := Challenge(`a"b\c`, "", auth.Decision{Err: auth.ErrMissingCredentials}); got != `Bearer realm="a\"b\\c"` {
		t.Fatalf("escaped challenge = %s", got)
	}
}

func newTestGuard(t *testing.T) *auth.Guard {
	t.Helper()
	stack, err := auth.Build(context.Background(), auth.Config{
		StaticSecret: auth.StaticSecretConfig{
			Enabled: true,
			Secrets: []string{"reader-key"},
			Scopes:  []string{"weather:read"},
		},
		OperationScopes: map[string]string{"get_weather": "weather:read", "admin": "weather:admin"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return stack.Guard
}

func TestMiddleware(t *testing.T) {
	guard := newTestGuard(t)

	mux := http.NewServeMux()
	mw := New(guard, PathValueOperation("name"),
		WithResourceMetadataURL("https://api.example.com"+MetadataPath),
		WithAPIKeyHeader("X-API-Key"))
	mux.Handle("POST /tools/{name}", mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		fields := observe.FieldsFromContext(r.Context())
		caller, ok := observe.CallerFromContext(r.Context())
		if id == nil || len(fields) == 0 || !ok || caller.Method != string(auth.AuthMethodAPIKey) {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(id.Subject))
	})))

	tests := []struct {
		name          string
		path          string
		header        string
		value         string
		wantStatus    int
		wantChallenge string
	}{
		{"authorized bearer", "/tools/get_weather", "Authorization", "Bearer reader-key", http.StatusOK, ""},
		{"authorized api key header", "/tools/get_weather", "X-API-Key", "reader-key", http.StatusOK, ""},
		{"missing", "/tools/get_weather", "", "", http.StatusUnauthorized, `Bearer realm="toolgate"`},
		{"rejected", "/tools/get_weather", "Authorization", "Bearer wrong", http.StatusUnauthorized, `error="invalid_token"`},
		{"forbidden", "/tools/admin", "Authorization", "Bearer reader-key", http.StatusForbidden, `scope="weather:admin"`},
		{"malformed header", "/tools/get_weather", "Authorization", "Bearer", http.StatusBadRequest, `error="invalid_request"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body)
			}
			challenge := w.Header().Get("WWW-Authenticate")
			if tt.wantChallenge == "" {
				if challenge != "" {
					t.Fatalf("unexpected challenge %q", challenge)
				}
				if w.Body.String() != auth.DefaultStaticSubject {
					t.Fatalf("body = %q", w.Body)
				}
				return
			}
			if !strings.Contains(challenge, tt.wantChallenge) {
				t.Fatalf("challenge = %q, want it to contain %q", challenge, tt.wantChallenge)
			}
			if strings.Contains(w.Body.String(), "static-secret") || strings.Contains(w.Body.String(), "unrecognized") {
				t.Fatalf("body leaks rejection details: %s", w.Body)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, f := range observe.FieldsFromContext(r.Context()) {
			if f.Key == "request_id" {
				seen, _ = f.Value.(string)
			}
		}
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil || w.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated id %q, header %q", seen, w.Header().Get(RequestIDHeader))
	}

	given := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, given)
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != given {
		t.Fatalf("id = %q, want propagated %q", seen, given)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == "<script>" {
		t.Fatal("invalid request id was propagated")
	}
}

func TestMetadataHandler(t *testing.T) {
	stack, err := auth.Build(context.Background(), auth.Config{
		Providers: []auth.ProviderConfig{
			{Name: "entra", Issuer: "https://login.example.com/v2.0", JWKSURL: "https://login.example.com/keys"},
			{Name: "ims", Issuer: "https://ims.example.com", JWKSURL: "https://ims.example.com/keys"},
		},
		OperationScopes: map[string]string{"get_weather": "weather:read", "get_forecast": "weather:read"},
	})
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	RegisterMetadata(mux, NewResourceMetadata("https://api.example.com", "toolgate", stack))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, MetadataPath, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got ResourceMetadata
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Resource != "https://api.example.com" || len(got.AuthorizationServers) != 2 ||
		got.AuthorizationServers[0] != "https://login.example.com/v2.0" {
		t.Fatalf("metadata = %+v", got)
	}
	if len(got.ScopesSupported) != 1 || got.ScopesSupported[0] != "weather:read" {
		t.Fatalf("scopes = %v", got.ScopesSupported)
	}
}
