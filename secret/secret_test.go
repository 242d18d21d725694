package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubProvider struct {
	name    string
	values  map[string]string
	resolve func(ref string) (string, error)
	closed  bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.resolve != nil {
		return s.resolve(ref)
	}
	return s.values[ref], nil
}

func (s *stubProvider) Close() error { s.closed = true; return nil }

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in           string
		wantProvider string
		wantRef      string
		wantOK       bool
	}{
		{"secretref:env:API_KEY", "env", "API_KEY", true},
		{"secretref:file:/run/secrets/api_key", "file", "/run/secrets/api_key", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"mock_mcp_api_key", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, ref, ok := ParseSecretRef(tt.in)
			if p != tt.wantProvider || ref != tt.wantRef || ok != tt.wantOK {
				t.Fatalf("ParseSecretRef(%q) = (%q, %q, %v)", tt.in, p, ref, ok)
			}
		})
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"alpha": "one", "empty": ""}})
	ctx := context.Background()

	got, err := r.ResolveValue(ctx, "secretref:stub:alpha")
	if err != nil || got != "one" {
		t.Fatalf("full ref = (%q, %v)", got, err)
	}

	got, err = r.ResolveValue(ctx, "key=secretref:stub:alpha rest")
	if err != nil || got != "key=one rest" {
		t.Fatalf("inline ref = (%q, %v)", got, err)
	}

	got, err = r.ResolveValue(ctx, "plain-value")
	if err != nil || got != "plain-value" {
		t.Fatalf("plain = (%q, %v)", got, err)
	}

	if _, err := r.ResolveValue(ctx, "secretref:stub:empty"); !errors.Is(err, ErrEmptyValue) {
		t.Fatalf("strict empty = %v, want ErrEmptyValue", err)
	}
	if _, err := r.ResolveValue(ctx, "secretref:vault:x"); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("unknown provider = %v, want ErrProviderNotRegistered", err)
	}
}

func TestResolver_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("explode")
	r := NewResolver(false, &stubProvider{name: "stub", resolve: func(string) (string, error) { return "", boom }})

	if _, err := r.ResolveValue(context.Background(), "secretref:stub:x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestResolver_ResolveSliceAndClose(t *testing.T) {
	stub := &stubProvider{name: "stub", values: map[string]string{"alpha": "one"}}
	r := NewResolver(true, stub)

	out, err := r.ResolveSlice(context.Background(), []string{"a", "secretref:stub:alpha"})
	if err != nil {
		t.Fatalf("ResolveSlice: %v", err)
	}
	if out[0] != "a" || out[1] != "one" {
		t.Fatalf("out = %v", out)
	}

	_, err = r.ResolveSlice(context.Background(), []string{"secretref:nope:x"})
	if err == nil || !strings.Contains(err.Error(), "[0]") {
		t.Fatalf("err = %v, want index in message", err)
	}

	if err := r.Close(); err != nil || !stub.closed {
		t.Fatalf("Close: err=%v closed=%v", err, stub.closed)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("TOOLGATE_TEST_KEY", "s3cret")
	r := NewResolver(true, &EnvProvider{Prefix: "TOOLGATE_"})

	got, err := r.ResolveValue(context.Background(), "secretref:env:TEST_KEY")
	if err != nil || got != "s3cret" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	if _, err := r.ResolveValue(context.Background(), "secretref:env:UNSET_KEY"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api_key"), []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := &FileProvider{BaseDir: dir}
	ctx := context.Background()

	got, err := p.Resolve(ctx, "api_key")
	if err != nil || got != "from-file" {
		t.Fatalf("relative = (%q, %v)", got, err)
	}
	got, err = p.Resolve(ctx, filepath.Join(dir, "api_key"))
	if err != nil || got != "from-file" {
		t.Fatalf("absolute = (%q, %v)", got, err)
	}
	if _, err := p.Resolve(ctx, "../etc/passwd"); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("escape = %v, want ErrInvalidRef", err)
	}
	if _, err := p.Resolve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing = %v, want ErrNotFound", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewDefaultRegistry()
	if got := reg.List(); len(got) != 2 || got[0] != "env" || got[1] != "file" {
		t.Fatalf("List() = %v", got)
	}

	p, err := reg.Create("env", map[string]any{"prefix": "APP_"})
	if err != nil {
		t.Fatalf("Create(env): %v", err)
	}
	if ep, ok := p.(*EnvProvider); !ok || ep.Prefix != "APP_" {
		t.Fatalf("unexpected provider %#v", p)
	}

	if _, err := reg.Create("file", map[string]any{"base_dir": 42}); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("bad option = %v, want ErrInvalidRef", err)
	}
	if _, err := reg.Create("vault", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("unknown = %v", err)
	}
	if err := reg.Register("env", func(map[string]any) (Provider, error) { return nil, nil }); !errors.Is(err, ErrDuplicateProvider) {
		t.Fatalf("duplicate = %v", err)
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	out, err := ExpandEnvStrict("$${PRESENT} ${PRESENT}")
	if err != nil || out != "${PRESENT} ok" {
		t.Fatalf("got (%q, %v)", out, err)
	}

	_, err = ExpandEnvStrict("a=${MISSING_B} b=${MISSING_A}")
	if !errors.Is(err, ErrMissingEnv) || !strings.Contains(err.Error(), "MISSING_A, MISSING_B") {
		t.Fatalf("err = %v", err)
	}
}
