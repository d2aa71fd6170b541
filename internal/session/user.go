package session

// User carries the claims a provider adapter mapped for the session.
// Sub-objects are pointers so an ungranted category marshals as absent, not
// as an empty object.
type User struct {
	Name     string    `json:"name,omitempty"`
	ID       string    `json:"id,omitempty"`
	Token    string    `json:"token,omitempty"`
	Account  *Account  `json:"account,omitempty"`
	Contact  *Contact  `json:"contact,omitempty"`
	Security *Security `json:"security,omitempty"`
}

// Account holds public profile claims (account scope).
type Account struct {
	Avatar    string `json:"avatar,omitempty"`
	Color     string `json:"color,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Contact holds contact claims (contact scope).
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Security holds account security claims (security scope).
type Security struct {
	Has2FA       bool `json:"has2FA"`
	HasSMSBackup bool `json:"hasSMSBackup"`
}

// Filter returns a copy of the user with every claim category the session
// was not granted stripped out. Adapters already gate what they store; this
// is the last line before claims leave the broker.
func (u User) Filter(scopes []Scope) User {
	granted := make(map[Scope]struct{}, len(scopes))
	for _, s := range scopes {
		granted[s] = struct{}{}
	}
	has := func(s Scope) bool {
		_, ok := granted[s]
		return ok
	}

	out := User{}
	if has(ScopeID) {
		out.ID = u.ID
	}
	if has(ScopeToken) {
		out.Token = u.Token
	}
	if has(ScopeAccount) {
		out.Name = u.Name
		out.Account = u.Account
	}
	if has(ScopeContact) {
		out.Contact = u.Contact
	}
	if has(ScopeSecurity) {
		out.Security = u.Security
	}
	return out
}
