// Package session defines the authentication session and application
// registration models shared by the stores, the provider adapters and the
// HTTP handlers, together with the session status machine and scope
// vocabulary.
package session

import (
	"time"

	"github.com/dmitrymomot/authgate/pkg/random"
)

// Application is a registered relying party. Records are created and edited
// only through administrative tooling and are treated as immutable for the
// lifetime of any session referencing them.
type Application struct {
	ID           string   `json:"id"`
	Secret       string   `json:"secret"`
	Name         string   `json:"name"`
	Homepage     string   `json:"homepage"`
	Icon         string   `json:"icon"`
	RedirectURLs []string `json:"redirectURLs"`
}

// NewApplication registers a relying party with freshly generated
// credentials.
func NewApplication(name, homepage, icon string, redirectURLs []string) *Application {
	return &Application{
		ID:           random.ClientID(),
		Secret:       random.ClientSecret(),
		Name:         name,
		Homepage:     homepage,
		Icon:         icon,
		RedirectURLs: redirectURLs,
	}
}

// AllowsRedirect reports whether the URL is on the application's exact-match
// allow-list.
func (a *Application) AllowsRedirect(url string) bool {
	for _, allowed := range a.RedirectURLs {
		if allowed == url {
			return true
		}
	}
	return false
}

// Session is one end-user login attempt. Correlation keys (InternalState,
// RedirectID, OAuthToken, Code, Token) are random hex values wide enough
// that collisions are negligible; the stores index sessions by each of them.
//
// After creation only Status, Timestamp, User, Code, Token and Platform may
// change, and Status only moves forward through the state machine.
type Session struct {
	ApplicationID  string   `json:"applicationId"`
	RedirectURL    string   `json:"redirectURL"`
	State          string   `json:"state"`
	ResponseType   string   `json:"responseType"`
	InternalState  string   `json:"internalState"`
	RedirectID     string   `json:"redirectId"`
	OAuthToken     string   `json:"oauthToken,omitempty"`
	Code           string   `json:"code,omitempty"`
	Token          string   `json:"token,omitempty"`
	Scopes         []Scope  `json:"scopes"`
	AllowedMethods []string `json:"allowedMethods"`
	Platform       string   `json:"authenticationPlatform,omitempty"`
	Status         Status   `json:"status"`
	User           User     `json:"user"`

	// Timestamp is the last transition time in milliseconds since epoch;
	// the expiry sweep measures each status TTL from it.
	Timestamp int64 `json:"timestamp"`
}

// Response types a relying party may request.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// MethodWildcard in AllowedMethods permits any provider.
const MethodWildcard = "*"

// New creates a session in the created status with fresh correlation keys.
// Pre-registered sessions (the request_token flow) additionally carry an
// oauth_token handed back to the relying party's backend.
func New(applicationID, redirectURL, state, responseType string, scopes []Scope, allowedMethods []string, preRegistered bool) *Session {
	s := &Session{
		ApplicationID:  applicationID,
		RedirectURL:    redirectURL,
		State:          state,
		ResponseType:   responseType,
		InternalState:  random.Hex(32),
		RedirectID:     random.Hex(16),
		Scopes:         scopes,
		AllowedMethods: allowedMethods,
		Status:         StatusCreated,
		Timestamp:      time.Now().UnixMilli(),
	}
	if len(s.AllowedMethods) == 0 {
		s.AllowedMethods = []string{MethodWildcard}
	}
	if preRegistered {
		s.OAuthToken = random.Hex(16)
	}
	return s
}

// AllowsMethod reports whether the chosen provider id is permitted by the
// session's allow-list.
func (s *Session) AllowsMethod(id string) bool {
	for _, m := range s.AllowedMethods {
		if m == MethodWildcard || m == id {
			return true
		}
	}
	return false
}

// Expired reports whether the TTL for the session's current status has
// elapsed at the given time.
func (s *Session) Expired(now time.Time) bool {
	return s.Timestamp+TTL(s.Status).Milliseconds() < now.UnixMilli()
}

// HasScope reports whether the session was granted the scope.
func (s *Session) HasScope(scope Scope) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}
