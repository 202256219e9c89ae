// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"skymm/config"
	deliverycontext "skymm/internal/delivery/context"
	"skymm/internal/domain/entity"
	domainerrors "skymm/internal/domain/errors"
	"skymm/internal/domain/service"
	"skymm/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	// loginFailedMarker is the error value the frontend looks for
	loginFailedMarker = "login_failed"

	// apiPathMarker is the path segment where the API starts in the redirect URI
	apiPathMarker = "/api"
)

// authService implements the AuthUsecase interface.
type authService struct {
	discord      *config.DiscordConfig
	frontend     *config.FrontendConfig
	provider     service.OAuthProvider
	stateService service.StateService
	tokenService service.TokenService
	dispatcher   service.EventDispatcher
	logger       *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	Config       *config.Config
	Provider     service.OAuthProvider
	StateService service.StateService
	TokenService service.TokenService
	Dispatcher   service.EventDispatcher
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	discordCfg := params.Config.Discord
	if discordCfg == nil {
		discordCfg = &config.DiscordConfig{}
	}
	frontendCfg := params.Config.Frontend
	if frontendCfg == nil {
		frontendCfg = &config.FrontendConfig{}
	}

	return &authService{
		discord:      discordCfg,
		frontend:     frontendCfg,
		provider:     params.Provider,
		stateService: params.StateService,
		tokenService: params.TokenService,
		dispatcher:   params.Dispatcher,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// StartLogin generates a CSRF state and the Discord consent URL carrying it.
func (srv *authService) StartLogin(ctx context.Context) (*usecase.LoginStartOutput, error) {
	if isBlank(srv.discord.ClientID) || isBlank(srv.discord.RedirectURI) {
		srv.log(ctx).Error("Discord OAuth is not configured, missing client id or redirect uri")

		return nil, domainerrors.ErrConfigurationMissing.WrapMessage("discord client id or redirect uri not set")
	}

	state, err := srv.stateService.Generate()
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrInternalError, err.Error())
	}

	authURL := srv.provider.AuthorizationURL(service.AuthorizationParams{
		ClientID:    srv.discord.ClientID,
		RedirectURI: srv.discord.RedirectURI,
		State:       state,
	})

	return &usecase.LoginStartOutput{
		AuthURL:  authURL,
		State:    state,
		StateTTL: srv.stateService.TTL(),
	}, nil
}

// HandleCallback validates the returned state, exchanges the code, loads
// the profile and mints a token. The provider is never contacted when the
// state does not match.
func (srv *authService) HandleCallback(ctx context.Context, input *usecase.CallbackInput) (*usecase.CallbackOutput, error) {
	if input == nil || isBlank(input.Code) || isBlank(input.State) {
		return nil, domainerrors.ErrBadRequest
	}

	if isBlank(srv.discord.ClientID) || isBlank(srv.discord.ClientSecret) || isBlank(srv.discord.RedirectURI) {
		srv.log(ctx).Error("Discord OAuth is not configured, missing client credentials or redirect uri")

		return nil, domainerrors.ErrConfigurationMissing.WrapMessage("discord client credentials not set")
	}

	origin, err := srv.frontendOrigin()
	if err != nil {
		srv.log(ctx).Error("Failed to resolve frontend origin", slog.Any("error", err))

		return nil, domainerrors.ErrConfigurationMissing.WrapMessage(err.Error())
	}

	if !srv.stateService.Validate(input.CookieState, input.State) {
		srv.log(ctx).Warn("OAuth state mismatch, aborting login",
			slog.Bool("cookie_present", input.CookieState != ""),
		)

		return srv.failureRedirect(origin, domainerrors.ErrCSRFMismatch)
	}

	credential, err := srv.provider.ExchangeCode(ctx, &service.CodeExchange{
		Code:         input.Code,
		ClientID:     srv.discord.ClientID,
		ClientSecret: srv.discord.ClientSecret,
		RedirectURI:  srv.discord.RedirectURI,
	})
	if err != nil {
		srv.log(ctx).Error("Discord code exchange failed", slog.Any("error", err))

		return srv.failureRedirect(origin, domainerrors.ErrExchangeFailed)
	}

	identity, err := srv.provider.FetchProfile(ctx, credential.AccessToken)
	if err != nil {
		srv.log(ctx).Error("Discord profile fetch failed", slog.Any("error", err))

		return srv.failureRedirect(origin, domainerrors.ErrProfileFetchFailed)
	}

	token, err := srv.tokenService.IssueToken(identity)
	if err != nil {
		srv.log(ctx).Error("Failed to issue login token", slog.Any("error", err))

		return srv.failureRedirect(origin, domainerrors.ErrTokenIssueFailed)
	}

	userJSON, err := json.Marshal(identity)
	if err != nil {
		srv.log(ctx).Error("Failed to encode user for redirect", slog.Any("error", err))

		return srv.failureRedirect(origin, domainerrors.ErrTokenIssueFailed)
	}

	redirectURL, err := withQuery(origin, url.Values{
		"token": {token},
		"user":  {string(userJSON)},
	})
	if err != nil {
		return nil, domainerrors.ErrConfigurationMissing.WrapMessage(err.Error())
	}

	srv.log(ctx).Info("Discord login succeeded", slog.String("discord_id", identity.ProviderID))

	srv.dispatcher.Dispatch(&service.LoginEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		EventID:    uuid.New().String(),
		Type:       service.LoginEventTypeLogin,
		DiscordID:  identity.ProviderID,
		Username:   identity.Username,
		Email:      identity.Email,
		AvatarURL:  identity.AvatarURL,
		OccurredAt: time.Now().UTC(),
	})

	return &usecase.CallbackOutput{
		RedirectURL: redirectURL,
		Token:       token,
		User:        identity,
	}, nil
}

// Authenticate verifies a presented token and returns the identity inside.
// Signature, format and expiry failures all look the same to the caller.
func (srv *authService) Authenticate(ctx context.Context, token string) (*entity.UserIdentity, error) {
	if isBlank(token) {
		return nil, domainerrors.ErrUnauthenticated
	}

	identity, err := srv.tokenService.VerifyToken(token)
	if err != nil {
		srv.log(ctx).Debug("Rejected login token", slog.Any("error", err))

		return nil, domainerrors.ErrUnauthenticated
	}

	return identity, nil
}

// failureRedirect sends the user back to the frontend with an error marker
// and the user-facing message of appErr. Provider details never leave the server.
func (srv *authService) failureRedirect(origin string, appErr *domainerrors.BaseError) (*usecase.CallbackOutput, error) {
	redirectURL, err := withQuery(origin, url.Values{
		"error":   {loginFailedMarker},
		"message": {appErr.Message()},
	})
	if err != nil {
		return nil, domainerrors.ErrConfigurationMissing.WrapMessage(err.Error())
	}

	return &usecase.CallbackOutput{
		RedirectURL: redirectURL,
		Failure:     appErr,
	}, nil
}

// frontendOrigin is the redirect URI up to its first "/api" path segment.
// frontend.origin is used when the redirect URI is not an absolute URL.
func (srv *authService) frontendOrigin() (string, error) {
	if u, err := url.Parse(srv.discord.RedirectURI); err == nil && isAbsoluteURL(srv.discord.RedirectURI) {
		origin := &url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host, Path: pathBeforeAPI(u.Path)}

		return origin.String(), nil
	}

	if isAbsoluteURL(srv.frontend.Origin) {
		return srv.frontend.Origin, nil
	}

	return "", errors.Errorf("no usable frontend origin in redirect uri or frontend.origin")
}

// pathBeforeAPI cuts p at the first segment named exactly "api".
func pathBeforeAPI(p string) string {
	for i := 0; ; {
		idx := strings.Index(p[i:], apiPathMarker)
		if idx < 0 {
			return p
		}
		end := i + idx + len(apiPathMarker)
		if end == len(p) || p[end] == '/' {
			return p[:i+idx]
		}
		i = end
	}
}

func withQuery(base string, values url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid frontend origin %q", base)
	}

	query := u.Query()
	for key, vals := range values {
		for _, v := range vals {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
