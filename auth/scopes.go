package auth

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ScopeSet is an immutable set of normalized scopes.
//
// Scope strings are split on whitespace and commas; each scope is trimmed
// and lower-cased. The zero value is the empty set.
type ScopeSet struct {
	scopes []string // sorted, unique
}

// NewScopeSet builds a set from scope strings. Each value may itself hold
// several delimited scopes.
func NewScopeSet(values ...string) ScopeSet {
	var out []string
	for _, v := range values {
		out = append(out, splitScopes(v)...)
	}
	slices.Sort(out)
	return ScopeSet{scopes: slices.Compact(out)}
}

// ParseScopes builds a set from a claim value: a delimited string or a
// sequence of strings. nil yields the empty set.
func ParseScopes(v any) (ScopeSet, error) {
	switch val := v.(type) {
	case nil:
		return ScopeSet{}, nil
	case string:
		return NewScopeSet(val), nil
	case []string:
		return NewScopeSet(val...), nil
	case []any:
		values := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return ScopeSet{}, fmt.Errorf("scope [%d] is %T, not a string", i, item)
			}
			values = append(values, s)
		}
		return NewScopeSet(values...), nil
	default:
		return ScopeSet{}, fmt.Errorf("scope claim is %T, not a string or list", v)
	}
}

// NormalizeScope returns scope trimmed and lower-cased.
func NormalizeScope(scope string) string {
	return strings.ToLower(strings.TrimSpace(scope))
}

func splitScopes(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// Contains reports whether scope is in the set. The empty scope is never
// contained.
func (s ScopeSet) Contains(scope string) bool {
	scope = NormalizeScope(scope)
	if scope == "" {
		return false
	}
	_, found := slices.BinarySearch(s.scopes, scope)
	return found
}

// Len returns the number of scopes.
func (s ScopeSet) Len() int { return len(s.scopes) }

// IsEmpty reports whether the set has no scopes.
func (s ScopeSet) IsEmpty() bool { return len(s.scopes) == 0 }

// Slice returns a sorted copy of the scopes.
func (s ScopeSet) Slice() []string { return slices.Clone(s.scopes) }

// Union returns a set holding the scopes of both sets.
func (s ScopeSet) Union(other ScopeSet) ScopeSet {
	if other.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return other
	}
	merged := append(slices.Clone(s.scopes), other.scopes...)
	slices.Sort(merged)
	return ScopeSet{scopes: slices.Compact(merged)}
}

// Equal reports whether both sets hold the same scopes.
func (s ScopeSet) Equal(other ScopeSet) bool {
	return slices.Equal(s.scopes, other.scopes)
}

// String returns the scopes joined by single spaces.
func (s ScopeSet) String() string { return strings.Join(s.scopes, " ") }

// MarshalJSON encodes the set as a JSON array.
func (s ScopeSet) MarshalJSON() ([]byte, error) {
	if s.scopes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.scopes)
}
