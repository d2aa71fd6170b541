package provider

import "errors"

// UserError carries a message that is safe to show to the end user.
// The HTTP layer surfaces it as a 400 with the message verbatim; any
// wrapped cause stays in the logs only.
type UserError struct {
	msg string
}

func (e *UserError) Error() string { return e.msg }

// Message returns the client-safe text.
func (e *UserError) Message() string { return e.msg }

// userError wraps a client-safe message around an internal cause.
func userError(msg string, cause error) error {
	ue := &UserError{msg: msg}
	if cause == nil {
		return ue
	}
	return errors.Join(ue, cause)
}

var (
	// ErrMissingCode means the callback query carried no authorization code.
	ErrMissingCode = &UserError{msg: "Missing code from query. The user might have rejected the login request."}

	// ErrMissingOAuthParams means an OAuth 1.0a callback lacked its token
	// or verifier.
	ErrMissingOAuthParams = &UserError{msg: "Missing required data from the query. The user might have rejected the login request."}

	// ErrMissingCredentials is returned by a constructor when client
	// credentials are absent.
	ErrMissingCredentials = errors.New("provider: missing client credentials")

	// ErrPreflightRequired is returned by AuthorizeURL on providers that
	// can only start a login through their Preflight step.
	ErrPreflightRequired = errors.New("provider: authorization requires preflight")
)
