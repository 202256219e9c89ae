package middleware

import (
	"strings"

	"skymm/internal/delivery/api/response"
	deliverycontext "skymm/internal/delivery/context"
	"skymm/internal/domain/constants"
	domainerrors "skymm/internal/domain/errors"
	"skymm/internal/usecase"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware rejects requests that do not carry a valid login token.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC}
}

// Authenticate reads the token from the Authorization header, or from the
// auth cookie when no header is sent. Every failure answers the same 401.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c)
		if token == "" {
			return unauthenticated(c)
		}

		user, err := m.authUC.Authenticate(c.Request().Context(), token)
		if err != nil {
			return unauthenticated(c)
		}

		deliverycontext.SetUser(c, user)

		return next(c)
	}
}

func extractToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		token, found := strings.CutPrefix(header, bearerPrefix)
		if !found {
			return ""
		}

		return strings.TrimSpace(token)
	}

	if cookie, err := c.Cookie(constants.AuthCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

func unauthenticated(c echo.Context) error {
	return response.Unauthorized(c, domainerrors.ErrUnauthenticated.ErrorCode(), domainerrors.ErrUnauthenticated.Message())
}
