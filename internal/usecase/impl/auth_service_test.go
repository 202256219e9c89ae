package impl

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"skymm/config"
	"skymm/internal/domain/entity"
	domainerrors "skymm/internal/domain/errors"
	"skymm/internal/domain/service"
	"skymm/internal/infra/auth"
	mockService "skymm/internal/mocks/service"
	"skymm/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testFrontendOrigin = "http://localhost:3000"

func newAuthTestConfig() *config.Config {
	return &config.Config{
		Discord: &config.DiscordConfig{
			ClientID:     "client_1",
			ClientSecret: "secret_1",
			RedirectURI:  testFrontendOrigin + "/api/oauth/callback",
		},
		JWT: &config.JWTConfig{
			Secret: "test_signing_secret",
			TTL:    time.Hour,
		},
		Frontend: &config.FrontendConfig{Origin: "https://fallback.example.com"},
	}
}

type authTestDeps struct {
	provider   *mockService.MockOAuthProvider
	dispatcher *mockService.MockEventDispatcher
	tokens     service.TokenService
}

func newTestAuthService(t *testing.T, cfg *config.Config) (usecase.AuthUsecase, *authTestDeps) {
	t.Helper()

	tokens, err := auth.NewTokenService(cfg)
	require.NoError(t, err)

	deps := &authTestDeps{
		provider:   mockService.NewMockOAuthProvider(t),
		dispatcher: mockService.NewMockEventDispatcher(t),
		tokens:     tokens,
	}

	uc := NewAuthService(AuthServiceParams{
		Config:       cfg,
		Provider:     deps.provider,
		StateService: auth.NewStateService(),
		TokenService: tokens,
		Dispatcher:   deps.dispatcher,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return uc, deps
}

func parseRedirect(t *testing.T, raw string) url.Values {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, testFrontendOrigin, u.Scheme+"://"+u.Host)

	return u.Query()
}

func TestAuthService_StartLogin_Success(t *testing.T) {
	uc, deps := newTestAuthService(t, newAuthTestConfig())

	deps.provider.EXPECT().
		AuthorizationURL(mock.AnythingOfType("service.AuthorizationParams")).
		RunAndReturn(func(params service.AuthorizationParams) string {
			assert.Equal(t, "client_1", params.ClientID)
			assert.Equal(t, testFrontendOrigin+"/api/oauth/callback", params.RedirectURI)

			return "https://discord.test/authorize?state=" + params.State
		})

	out, err := uc.StartLogin(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, out.State)
	assert.Equal(t, "https://discord.test/authorize?state="+out.State, out.AuthURL)
	assert.Equal(t, 600*time.Second, out.StateTTL)
}

func TestAuthService_StartLogin_ConfigurationMissing(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
	}{
		{name: "missing client id", modify: func(cfg *config.Config) { cfg.Discord.ClientID = "" }},
		{name: "missing redirect uri", modify: func(cfg *config.Config) { cfg.Discord.RedirectURI = "  " }},
		{name: "missing discord section", modify: func(cfg *config.Config) { cfg.Discord = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newAuthTestConfig()
			tt.modify(cfg)
			uc, _ := newTestAuthService(t, cfg)

			out, err := uc.StartLogin(context.Background())

			assert.Nil(t, out)
			assert.ErrorIs(t, err, domainerrors.ErrConfigurationMissing)
		})
	}
}

func TestAuthService_HandleCallback_BadRequest(t *testing.T) {
	uc, _ := newTestAuthService(t, newAuthTestConfig())

	tests := []struct {
		name  string
		input *usecase.CallbackInput
	}{
		{name: "nil input", input: nil},
		{name: "missing state", input: &usecase.CallbackInput{Code: "abc", CookieState: "x"}},
		{name: "missing code", input: &usecase.CallbackInput{State: "x", CookieState: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := uc.HandleCallback(context.Background(), tt.input)

			assert.Nil(t, out)
			assert.ErrorIs(t, err, domainerrors.ErrBadRequest)
		})
	}
	// The mock provider has no expectations: any exchange call would fail the test.
}

func TestAuthService_HandleCallback_ConfigurationMissing(t *testing.T) {
	cfg := newAuthTestConfig()
	cfg.Discord.ClientSecret = ""
	uc, _ := newTestAuthService(t, cfg)

	out, err := uc.HandleCallback(context.Background(), &usecase.CallbackInput{
		Code: "abc", State: "x", CookieState: "x",
	})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, domainerrors.ErrConfigurationMissing)
}

func TestAuthService_HandleCallback_CSRFMismatch(t *testing.T) {
	tests := []struct {
		name        string
		cookieState string
	}{
		{name: "different state", cookieState: "other"},
		{name: "cookie never set", cookieState: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, deps := newTestAuthService(t, newAuthTestConfig())

			out, err := uc.HandleCallback(context.Background(), &usecase.CallbackInput{
				Code: "abc", State: "X", CookieState: tt.cookieState,
			})

			require.NoError(t, err)
			assert.ErrorIs(t, out.Failure, domainerrors.ErrCSRFMismatch)
			assert.Empty(t, out.Token)

			query := parseRedirect(t, out.RedirectURL)
			assert.Equal(t, "login_failed", query.Get("error"))
			assert.Equal(t, domainerrors.ErrCSRFMismatch.Message(), query.Get("message"))

			deps.provider.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
			deps.provider.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthService_HandleCallback_Success(t *testing.T) {
	uc, deps := newTestAuthService(t, newAuthTestConfig())
	ctx := context.Background()

	identity := &entity.UserIdentity{
		ProviderID: "42",
		Username:   "alice",
		Email:      "alice@example.com",
		AvatarURL:  entity.DefaultAvatarURL("0"),
	}

	deps.provider.EXPECT().
		ExchangeCode(ctx, &service.CodeExchange{
			Code:         "abc",
			ClientID:     "client_1",
			ClientSecret: "secret_1",
			RedirectURI:  testFrontendOrigin + "/api/oauth/callback",
		}).
		Return(&entity.ProviderCredential{AccessToken: "tok1", TokenType: "Bearer"}, nil).
		Once()
	deps.provider.EXPECT().FetchProfile(ctx, "tok1").Return(identity, nil).Once()

	var dispatched *service.LoginEvent
	deps.dispatcher.EXPECT().
		Dispatch(mock.AnythingOfType("*service.LoginEvent")).
		Run(func(event *service.LoginEvent) { dispatched = event }).
		Return().
		Once()

	out, err := uc.HandleCallback(ctx, &usecase.CallbackInput{Code: "abc", State: "X", CookieState: "X"})

	require.NoError(t, err)
	require.NoError(t, out.Failure)
	assert.Len(t, strings.Split(out.Token, "."), 3)

	query := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, out.Token, query.Get("token"))
	assert.Empty(t, query.Get("error"))

	var user entity.UserIdentity
	require.NoError(t, json.Unmarshal([]byte(query.Get("user")), &user))
	assert.Equal(t, *identity, user)
	assert.Equal(t, "https://cdn.discordapp.com/embed/avatars/0.png", user.AvatarURL)

	verified, err := deps.tokens.VerifyToken(query.Get("token"))
	require.NoError(t, err)
	assert.Equal(t, identity, verified)

	require.NotNil(t, dispatched)
	assert.Equal(t, service.LoginEventTypeLogin, dispatched.Type)
	assert.Equal(t, "42", dispatched.DiscordID)
	assert.NotEmpty(t, dispatched.EventID)
}

func TestAuthService_HandleCallback_ExchangeFailed(t *testing.T) {
	uc, deps := newTestAuthService(t, newAuthTestConfig())
	ctx := context.Background()

	deps.provider.EXPECT().
		ExchangeCode(ctx, mock.AnythingOfType("*service.CodeExchange")).
		Return(nil, errors.Wrap(domainerrors.ErrExchangeFailed, "status 400: invalid_grant")).
		Once()

	out, err := uc.HandleCallback(ctx, &usecase.CallbackInput{Code: "abc", State: "X", CookieState: "X"})

	require.NoError(t, err)
	assert.ErrorIs(t, out.Failure, domainerrors.ErrExchangeFailed)

	query := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "login_failed", query.Get("error"))
	assert.Equal(t, domainerrors.ErrExchangeFailed.Message(), query.Get("message"))
	assert.NotContains(t, out.RedirectURL, "invalid_grant")
	assert.NotContains(t, out.RedirectURL, "secret_1")

	deps.provider.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
}

func TestAuthService_HandleCallback_ProfileFetchFailed(t *testing.T) {
	uc, deps := newTestAuthService(t, newAuthTestConfig())
	ctx := context.Background()

	deps.provider.EXPECT().
		ExchangeCode(ctx, mock.AnythingOfType("*service.CodeExchange")).
		Return(&entity.ProviderCredential{AccessToken: "tok1"}, nil).
		Once()
	deps.provider.EXPECT().
		FetchProfile(ctx, "tok1").
		Return(nil, domainerrors.ErrProfileFetchFailed).
		Once()

	out, err := uc.HandleCallback(ctx, &usecase.CallbackInput{Code: "abc", State: "X", CookieState: "X"})

	require.NoError(t, err)
	assert.ErrorIs(t, out.Failure, domainerrors.ErrProfileFetchFailed)
	assert.Empty(t, out.Token)

	query := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "login_failed", query.Get("error"))
	assert.Equal(t, domainerrors.ErrProfileFetchFailed.Message(), query.Get("message"))
}

func TestAuthService_FrontendOrigin(t *testing.T) {
	tests := []struct {
		name        string
		redirectURI string
		fallback    string
		want        string
		wantErr     bool
	}{
		{
			name:        "prefix before api",
			redirectURI: "https://shop.example.com/api/oauth/callback",
			want:        "https://shop.example.com",
		},
		{
			name:        "redirect uri without api path",
			redirectURI: "https://shop.example.com/callback",
			want:        "https://shop.example.com/callback",
		},
		{
			name:        "api host is not the api path",
			redirectURI: "https://api.example.com/api/oauth/callback",
			want:        "https://api.example.com",
		},
		{
			name:        "api host without fallback",
			redirectURI: "https://api.example.com/oauth/callback",
			want:        "https://api.example.com/oauth/callback",
		},
		{
			name:        "sub path kept before api segment",
			redirectURI: "https://example.com/app/apiary/api/oauth/callback",
			want:        "https://example.com/app/apiary",
		},
		{
			name:        "query dropped",
			redirectURI: "http://localhost:3000/api/oauth/callback?x=1",
			want:        "http://localhost:3000",
		},
		{
			name:        "relative redirect uri falls back",
			redirectURI: "/api/oauth/callback",
			fallback:    "https://fallback.example.com",
			want:        "https://fallback.example.com",
		},
		{
			name:        "nothing usable",
			redirectURI: "/api/oauth/callback",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &authService{
				discord:  &config.DiscordConfig{RedirectURI: tt.redirectURI},
				frontend: &config.FrontendConfig{Origin: tt.fallback},
			}

			got, err := srv.frontendOrigin()
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	uc, deps := newTestAuthService(t, newAuthTestConfig())
	ctx := context.Background()

	identity := &entity.UserIdentity{ProviderID: "42", Username: "alice"}
	tok, err := deps.tokens.IssueToken(identity)
	require.NoError(t, err)

	got, err := uc.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ProviderID)

	tampered := tok[:len(tok)-2] + "AA"
	if tampered == tok {
		tampered = tok[:len(tok)-2] + "BB"
	}

	for _, bad := range []string{"", "not-a-token", "a.b.c", tampered} {
		got, err := uc.Authenticate(ctx, bad)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	}
}

func TestAuthService_HandleCallback_TokenIssueFailed(t *testing.T) {
	provider := mockService.NewMockOAuthProvider(t)
	tokens := mockService.NewMockTokenService(t)
	ctx := context.Background()

	uc := NewAuthService(AuthServiceParams{
		Config:       newAuthTestConfig(),
		Provider:     provider,
		StateService: auth.NewStateService(),
		TokenService: tokens,
		Dispatcher:   mockService.NewMockEventDispatcher(t),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	identity := &entity.UserIdentity{ProviderID: "42", Username: "alice"}
	provider.EXPECT().
		ExchangeCode(ctx, mock.AnythingOfType("*service.CodeExchange")).
		Return(&entity.ProviderCredential{AccessToken: "tok1"}, nil).
		Once()
	provider.EXPECT().FetchProfile(ctx, "tok1").Return(identity, nil).Once()
	tokens.EXPECT().IssueToken(identity).Return("", errors.New("sign failed")).Once()

	out, err := uc.HandleCallback(ctx, &usecase.CallbackInput{Code: "abc", State: "X", CookieState: "X"})

	require.NoError(t, err)
	assert.ErrorIs(t, out.Failure, domainerrors.ErrTokenIssueFailed)

	query := parseRedirect(t, out.RedirectURL)
	assert.Equal(t, "login_failed", query.Get("error"))
	assert.Empty(t, query.Get("token"))
}
