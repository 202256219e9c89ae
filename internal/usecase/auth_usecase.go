// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"skymm/internal/domain/entity"
)

// --- Input DTOs ---

// CallbackInput carries what Discord sent back plus the state bound to
// the browser's cookie.
type CallbackInput struct {
	Code        string
	State       string
	CookieState string
}

// --- Output DTOs ---

// LoginStartOutput is what the client needs to begin a login attempt.
type LoginStartOutput struct {
	AuthURL  string
	State    string
	StateTTL time.Duration
}

// CallbackOutput describes where the browser goes after the callback.
// Failure is set when RedirectURL carries an error marker instead of a token.
type CallbackOutput struct {
	RedirectURL string
	Token       string
	User        *entity.UserIdentity
	Failure     error
}

// AuthUsecase defines the Discord login flow.
type AuthUsecase interface {
	// StartLogin creates a state and the consent URL carrying it
	StartLogin(ctx context.Context) (*LoginStartOutput, error)

	// HandleCallback finishes a login. Only request-shape and configuration
	// problems are returned as errors; everything else becomes an error redirect.
	HandleCallback(ctx context.Context, input *CallbackInput) (*CallbackOutput, error)

	// Authenticate checks a presented token. Every failure is ErrUnauthenticated.
	Authenticate(ctx context.Context, token string) (*entity.UserIdentity, error)
}
