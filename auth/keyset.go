package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// SigningKey is one public verification key from an issuer's key set.
type SigningKey struct {
	// KeyID is the JWK "kid". May be empty.
	KeyID string

	// Algorithm is the JWK "alg". When set, tokens must use exactly this
	// algorithm with the key.
	Algorithm string

	// Use is the JWK "use". Only "sig" or empty keys are kept.
	Use string

	// Key is an *rsa.PublicKey, *ecdsa.PublicKey or ed25519.PublicKey.
	Key crypto.PublicKey
}

// KeySetSnapshot is an immutable key set fetched at one point in time.
type KeySetSnapshot struct {
	// Issuer owns the key set.
	Issuer string

	// FetchedAt is when the set was fetched.
	FetchedAt time.Time

	// TTL is how long after FetchedAt the set is fresh.
	TTL time.Duration

	keys  map[string]SigningKey
	order []string
}

// NewKeySetSnapshot builds a snapshot. The first key with a given id wins.
func NewKeySetSnapshot(issuer string, keys []SigningKey, fetchedAt time.Time, ttl time.Duration) *KeySetSnapshot {
	s := &KeySetSnapshot{
		Issuer:    issuer,
		FetchedAt: fetchedAt,
		TTL:       ttl,
		keys:      make(map[string]SigningKey, len(keys)),
	}
	for _, k := range keys {
		if _, dup := s.keys[k.KeyID]; dup {
			continue
		}
		s.keys[k.KeyID] = k
		s.order = append(s.order, k.KeyID)
	}
	return s
}

// Lookup returns the key with id kid. An empty kid resolves only when the
// set holds exactly one key.
func (s *KeySetSnapshot) Lookup(kid string) (SigningKey, bool) {
	if kid == "" {
		if len(s.order) != 1 {
			return SigningKey{}, false
		}
		return s.keys[s.order[0]], true
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of keys.
func (s *KeySetSnapshot) Len() int { return len(s.order) }

// KeyIDs returns the key ids in key-set order.
func (s *KeySetSnapshot) KeyIDs() []string { return slices.Clone(s.order) }

// ExpiresAt returns when the snapshot stops being fresh.
func (s *KeySetSnapshot) ExpiresAt() time.Time { return s.FetchedAt.Add(s.TTL) }

// Fresh reports whether the snapshot is within its TTL at now.
func (s *KeySetSnapshot) Fresh(now time.Time) bool { return now.Before(s.ExpiresAt()) }

// Age returns how long ago the snapshot was fetched.
func (s *KeySetSnapshot) Age(now time.Time) time.Duration { return now.Sub(s.FetchedAt) }

var errEmptyKeySet = errors.New("key set has no usable signing keys")

// ParseKeySet parses a JWKS document. Keys that cannot be parsed, are not
// for signatures, or are not RSA, EC or Ed25519 keys are skipped. Private
// keys are reduced to their public half.
func ParseKeySet(data []byte) ([]SigningKey, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}
	if doc.Keys == nil {
		return nil, errors.New("decode key set: missing keys member")
	}

	keys := make([]SigningKey, 0, len(doc.Keys))
	for _, raw := range doc.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		pub := jwk.Public()
		if !pub.Valid() {
			continue
		}
		switch pub.Key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		default:
			continue
		}
		keys = append(keys, SigningKey{
			KeyID:     jwk.KeyID,
			Algorithm: jwk.Algorithm,
			Use:       jwk.Use,
			Key:       pub.Key,
		})
	}
	return keys, nil
}
