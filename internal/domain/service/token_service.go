package service

import "skymm/internal/domain/entity"

// TokenService issues and verifies the signed login tokens handed to the
// frontend. Implementations stamp issuance and expiry themselves.
type TokenService interface {
	// IssueToken signs a token embedding the given identity.
	IssueToken(identity *entity.UserIdentity) (string, error)

	// VerifyToken checks signature and expiry and returns the embedded identity.
	VerifyToken(token string) (*entity.UserIdentity, error)
}
