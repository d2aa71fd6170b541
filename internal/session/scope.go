package session

import (
	"errors"
	"fmt"
	"strings"
)

// Scope is a category of user claims a relying party may request. Each
// category gates an independent slice of the user object: omitting a scope
// omits the data entirely rather than redacting it client-side.
type Scope string

const (
	ScopeToken    Scope = "token"    // the provider access token itself
	ScopeID       Scope = "id"       // stable provider user id
	ScopeAccount  Scope = "account"  // public profile data
	ScopeContact  Scope = "contact"  // email/phone
	ScopeSecurity Scope = "security" // 2FA posture
)

// ErrInvalidScope is returned when a requested scope is not in the
// vocabulary.
var ErrInvalidScope = errors.New("session: invalid scope")

var allScopes = map[Scope]struct{}{
	ScopeToken:    {},
	ScopeID:       {},
	ScopeAccount:  {},
	ScopeContact:  {},
	ScopeSecurity: {},
}

// ParseScopes parses a comma-separated scope list, rejecting unknown or
// empty values.
func ParseScopes(raw string) ([]Scope, error) {
	parts := strings.Split(raw, ",")
	scopes := make([]Scope, 0, len(parts))
	var invalid []string
	for _, p := range parts {
		s := Scope(strings.TrimSpace(p))
		if _, ok := allScopes[s]; !ok {
			invalid = append(invalid, string(s))
			continue
		}
		scopes = append(scopes, s)
	}
	if len(invalid) > 0 {
		return nil, errors.Join(ErrInvalidScope, fmt.Errorf("invalid scopes: %s", strings.Join(invalid, ",")))
	}
	if len(scopes) == 0 {
		return nil, errors.Join(ErrInvalidScope, errors.New("at least one scope required"))
	}
	return scopes, nil
}

// ScopeStrings converts scopes back to their wire form.
func ScopeStrings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}
