// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"skymm/config"
	"skymm/internal/delivery/api/response"
	deliverycontext "skymm/internal/delivery/context"
	"skymm/internal/domain/constants"
	domainerrors "skymm/internal/domain/errors"
	"skymm/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	loginMessage  = "Redirecione o usuário para esta URL"
	logoutMessage = "Logout realizado com sucesso"
)

// CallbackRequest is the query Discord sends to the callback endpoint
type CallbackRequest struct {
	Code  string `query:"code" validate:"required"`
	State string `query:"state" validate:"required"`
}

// AuthHandler serves the Discord login endpoints.
type AuthHandler struct {
	uc           usecase.AuthUsecase
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	secure := false
	if cfg.Cookie != nil {
		secure = cfg.Cookie.Secure
	}

	return &AuthHandler{
		uc:           uc,
		secureCookie: secure,
		logger:       logger,
	}
}

// Login starts a login attempt: binds a fresh state to the browser and
// returns the Discord consent URL.
func (h *AuthHandler) Login(c echo.Context) error {
	output, err := h.uc.StartLogin(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(h.cookie(constants.StateCookieName, output.State, int(output.StateTTL.Seconds())))

	return c.JSON(http.StatusOK, response.LoginResponse{
		AuthURL: output.AuthURL,
		Message: loginMessage,
	})
}

// Callback completes the login and redirects to the frontend. Only a
// malformed request or missing configuration is answered with JSON.
func (h *AuthHandler) Callback(c echo.Context) error {
	var req CallbackRequest
	if err := c.Bind(&req); err != nil {
		return domainerrors.ErrBadRequest
	}
	if err := c.Validate(&req); err != nil {
		return domainerrors.ErrBadRequest
	}

	cookieState := ""
	if cookie, err := c.Cookie(constants.StateCookieName); err == nil {
		cookieState = cookie.Value
	}

	// A state is good for one callback whatever the outcome
	c.SetCookie(h.cookie(constants.StateCookieName, "", -1))

	output, err := h.uc.HandleCallback(c.Request().Context(), &usecase.CallbackInput{
		Code:        req.Code,
		State:       req.State,
		CookieState: cookieState,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if output.Failure != nil {
		deliverycontext.GetLoggerOrDefault(c.Request().Context(), h.logger).Warn("Login callback failed",
			slog.Any("error", output.Failure),
		)
	}

	return c.Redirect(http.StatusFound, output.RedirectURL)
}

// Logout clears the auth cookie. Tokens themselves are stateless and stay
// valid until they expire.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie(constants.AuthCookieName, "", -1))

	return c.JSON(http.StatusOK, response.LogoutResponse{
		Success: true,
		Message: logoutMessage,
	})
}

// Me returns the identity carried by the presented token.
// Must be used after AuthMiddleware.Authenticate.
func (h *AuthHandler) Me(c echo.Context) error {
	user, ok := deliverycontext.GetUser(c)
	if !ok {
		return domainerrors.ErrUnauthenticated
	}

	return c.JSON(http.StatusOK, response.MeResponse{User: user})
}

// cookie builds a root-scoped HttpOnly Lax cookie. A negative maxAge deletes it.
func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}
