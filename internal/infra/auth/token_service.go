// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"skymm/config"
	"skymm/internal/domain/entity"
	"skymm/internal/domain/service"
	"skymm/internal/infra/auth/token"

	"github.com/pkg/errors"
)

// Claim names carried by login tokens
const (
	claimDiscordID = "discordId"
	claimUsername  = "username"
	claimEmail     = "email"
	claimAvatar    = "avatar"
)

// tokenService is a concrete implementation of the TokenService interface on top of the token codec.
type tokenService struct {
	codec *token.Codec
}

// NewTokenService is the constructor for tokenService.
// The signing secret and lifetime are read once from configuration.
func NewTokenService(cfg *config.Config) (service.TokenService, error) {
	if cfg.JWT == nil || cfg.JWT.Secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}

	codec, err := token.NewCodec([]byte(cfg.JWT.Secret), cfg.JWT.TTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token codec")
	}

	return &tokenService{codec: codec}, nil
}

// IssueToken signs a token carrying the user's identity.
func (s *tokenService) IssueToken(identity *entity.UserIdentity) (string, error) {
	if identity == nil {
		return "", errors.New("identity must not be nil")
	}

	return s.codec.Issue(token.Claims{
		claimDiscordID: identity.ProviderID,
		claimUsername:  identity.Username,
		claimEmail:     identity.Email,
		claimAvatar:    identity.AvatarURL,
	})
}

// VerifyToken checks a presented token and rebuilds the identity from its claims.
func (s *tokenService) VerifyToken(tokenString string) (*entity.UserIdentity, error) {
	claims, err := s.codec.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	discordID, _ := claims[claimDiscordID].(string)
	if discordID == "" {
		return nil, token.ErrMalformedToken
	}

	username, _ := claims[claimUsername].(string)
	email, _ := claims[claimEmail].(string)
	avatar, _ := claims[claimAvatar].(string)

	return &entity.UserIdentity{
		ProviderID: discordID,
		Username:   username,
		Email:      email,
		AvatarURL:  avatar,
	}, nil
}
