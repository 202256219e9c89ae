package service

import "time"

// StateService generates and checks the CSRF state round-tripped through
// the OAuth provider.
type StateService interface {
	// Generate returns a fresh unguessable state value
	Generate() (string, error)

	// Validate reports whether the cookie-bound state matches the one the
	// provider returned. Empty values never match.
	Validate(cookieState, returnedState string) bool

	// TTL is how long a state stays valid on the client
	TTL() time.Duration
}
