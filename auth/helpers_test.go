package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testKey struct {
	kid    string
	alg    string
	method jwt.SigningMethod
	priv   any
	pub    crypto.PublicKey
}

func newRSAKey(t *testing.T, kid string) testKey {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key: %v", err)
	}
	return testKey{kid: kid, alg: "RS256", method: jwt.SigningMethodRS256, priv: pk, pub: &pk.PublicKey}
}

func newECKey(t *testing.T, kid string) testKey {
	t.Helper()
	pk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ec key: %v", err)
	}
	return testKey{kid: kid, alg: "ES256", method: jwt.SigningMethodES256, priv: pk, pub: &pk.PublicKey}
}

func newEdKey(t *testing.T, kid string) testKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 key: %v", err)
	}
	return testKey{kid: kid, alg: "EdDSA", method: jwt.SigningMethodEdDSA, priv: priv, pub: pub}
}

func (k testKey) jwk() jose.JSONWebKey {
	return jose.JSONWebKey{Key: k.pub, KeyID: k.kid, Algorithm: k.alg, Use: "sig"}
}

func (k testKey) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(k.method, claims)
	if k.kid != "" {
		tok.Header["kid"] = k.kid
	}
	s, err := tok.SignedString(k.priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// jwksServer serves a mutable key set and counts requests.
type jwksServer struct {
	*httptest.Server

	hits atomic.Int32

	mu     sync.Mutex
	keys   []jose.JSONWebKey
	status int
	gate   chan struct{}
}

func newJWKSServer(t *testing.T, keys ...testKey) *jwksServer {
	t.Helper()
	s := &jwksServer{status: http.StatusOK}
	s.setKeys(keys...)
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) serve(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	status := s.status
	body, _ := json.Marshal(jose.JSONWebKeySet{Keys: s.keys})
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *jwksServer) setKeys(keys ...testKey) {
	jwks := make([]jose.JSONWebKey, len(keys))
	for i, k := range keys {
		jwks[i] = k.jwk()
	}
	s.mu.Lock()
	s.keys = jwks
	s.mu.Unlock()
}

func (s *jwksServer) setStatus(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *jwksServer) setGate(gate chan struct{}) {
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
}

func newTestCache(srv *jwksServer, clock *fakeClock, settings KeyCacheSettings, opts ...Option) *KeyCache {
	opts = append([]Option{WithClock(clock.Now), WithHTTPClient(srv.Client())}, opts...)
	return NewKeyCache(KeyCacheConfig{
		KeyCacheSettings: settings,
		Issuer:           srv.URL,
		JWKSURL:          srv.URL + "/keys",
	}, opts...)
}

func claimsFor(issuer string, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   issuer,
		"sub":   "user-1",
		"aud":   "toolgate",
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
		"scope": "weather:read profile",
	}
}
