package provider

import "github.com/dmitrymomot/authgate/internal/session"

// mapScopes converts broker scopes to a provider's native scope string.
// Scopes without a mapping are dropped, duplicates collapse, and order
// follows the input.
func mapScopes(conversion map[session.Scope]string, separator string, scopes []session.Scope) string {
	var out string
	seen := make(map[string]bool, len(scopes))
	for _, scope := range scopes {
		native, ok := conversion[scope]
		if !ok || native == "" || seen[native] {
			continue
		}
		seen[native] = true
		if out != "" {
			out += separator
		}
		out += native
	}
	return out
}
