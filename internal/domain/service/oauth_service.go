package service

import (
	"context"

	"skymm/internal/domain/entity"
)

// AuthorizationParams are the values placed on the provider's consent URL
type AuthorizationParams struct {
	ClientID    string
	RedirectURI string
	State       string
}

// CodeExchange carries everything the token endpoint needs for one
// authorization code.
type CodeExchange struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// OAuthProvider defines the calls made against the identity provider.
// Each call is attempted once; authorization codes are single-use.
type OAuthProvider interface {
	// AuthorizationURL builds the URL the user is sent to for consent
	AuthorizationURL(params AuthorizationParams) string

	// ExchangeCode trades an authorization code for an access token
	ExchangeCode(ctx context.Context, req *CodeExchange) (*entity.ProviderCredential, error)

	// FetchProfile loads the user behind an access token
	FetchProfile(ctx context.Context, accessToken string) (*entity.UserIdentity, error)
}
