package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"time"

	"skymm/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	// StateTTL is how long a login attempt may take before its state expires
	StateTTL = 600 * time.Second

	stateBytes = 32
)

// stateService issues CSRF states. Nothing is stored server-side: the
// value lives only in the client's state cookie.
type stateService struct {
	random io.Reader
	ttl    time.Duration
}

// NewStateService creates a state service backed by crypto/rand.
func NewStateService() service.StateService {
	return &stateService{
		random: rand.Reader,
		ttl:    StateTTL,
	}
}

// Generate returns 32 random bytes as unpadded base64url, safe for both
// cookies and query strings.
func (s *stateService) Generate() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", errors.Wrap(err, "failed to generate oauth state")
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Validate compares states in constant time. Absent values never match.
func (s *stateService) Validate(cookieState, returnedState string) bool {
	if cookieState == "" || returnedState == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(cookieState), []byte(returnedState)) == 1
}

// TTL returns the state lifetime.
func (s *stateService) TTL() time.Duration {
	return s.ttl
}
