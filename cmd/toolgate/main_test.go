package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const verifyConfig = `
auth:
  static_secret:
    enabled: true
    secrets: ["reader-key"]
    scopes: ["weather:read"]
  operation_scopes:
    get_weather: weather:read
    admin: tools:admin
`

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "toolgate dev") {
		t.Fatalf("out = %q", out)
	}
}

func TestVerifyCmd(t *testing.T) {
	path := writeFile(t, verifyConfig)

	tests := []struct {
		name       string
		stdin      string
		args       []string
		wantErr    bool
		wantStatus string
		wantReason string
	}{
		{
			name:       "authorized",
			args:       []string{"--token", "reader-key"},
			wantStatus: "authorized",
		},
		{
			name:       "stdin",
			stdin:      "reader-key\n",
			args:       []string{"-"},
			wantStatus: "authorized",
		},
		{
			name:       "unknown secret",
			args:       []string{"--token", "nope"},
			wantErr:    true,
			wantStatus: "unauthenticated",
		},
		{
			name:       "missing scope",
			args:       []string{"--token", "reader-key", "--operation", "admin"},
			wantErr:    true,
			wantStatus: "forbidden",
			wantReason: "insufficient_scope",
		},
		{
			name:       "no credential",
			wantErr:    true,
			wantStatus: "unauthenticated",
			wantReason: "missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", path, "verify"}, tt.args...)
			out, err := runCmd(t, tt.stdin, args...)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errDenied) {
				t.Fatalf("err = %v, want errDenied", err)
			}

			var res verifyResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode %q: %v", out, err)
			}
			if res.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", res.Status, tt.wantStatus)
			}
			if tt.wantReason != "" && res.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
		})
	}
}

func TestVerifyCmd_BadConfig(t *testing.T) {
	path := writeFile(t, "auth:\n  providers:\n    - issuer: \"\"\n")
	if _, err := runCmd(t, "", "--config", path, "verify", "--token", "x"); err == nil {
		t.Fatal("expected config error")
	}
}
