package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"skymm/config"
	"skymm/internal/domain/entity"
	domainerrors "skymm/internal/domain/errors"
	"skymm/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	discordAuthorizeURL = "https://discord.com/api/oauth2/authorize"
	discordTokenURL     = "https://discord.com/api/oauth2/token"
	discordUserURL      = "https://discord.com/api/users/@me"

	// loginScopes is what the consent screen asks for, the profile fetch relies on both
	loginScopes = "identify email"

	// maxResponseBytes caps what is read from Discord, including error bodies kept for logs
	maxResponseBytes = 64 << 10
)

// OAuthService handles the Discord side of the authorization-code flow.
// It holds endpoints only; client credentials come with each call.
type OAuthService struct {
	authorizeURL string
	tokenURL     string
	userURL      string
	httpClient   *http.Client
}

// NewOAuthService creates a Discord OAuth service. Every outbound call is
// bounded by discord.requestTimeout.
func NewOAuthService(cfg *config.Config) service.OAuthProvider {
	discordCfg := cfg.Discord
	if discordCfg == nil {
		discordCfg = &config.DiscordConfig{}
	}

	return &OAuthService{
		authorizeURL: valueOrDefault(discordCfg.AuthorizeURL, discordAuthorizeURL),
		tokenURL:     valueOrDefault(discordCfg.TokenURL, discordTokenURL),
		userURL:      valueOrDefault(discordCfg.UserURL, discordUserURL),
		httpClient: &http.Client{
			Timeout: discordCfg.RequestTimeout,
		},
	}
}

// AuthorizationURL builds the consent URL for a login attempt
func (s *OAuthService) AuthorizationURL(params service.AuthorizationParams) string {
	values := url.Values{}
	values.Set("client_id", params.ClientID)
	values.Set("redirect_uri", params.RedirectURI)
	values.Set("response_type", "code")
	values.Set("scope", loginScopes)
	values.Set("state", params.State)

	return s.authorizeURL + "?" + values.Encode()
}

// ExchangeCode exchanges an authorization code for an access token
func (s *OAuthService) ExchangeCode(ctx context.Context, req *service.CodeExchange) (*entity.ProviderCredential, error) {
	data := url.Values{}
	data.Set("client_id", req.ClientID)
	data.Set("client_secret", req.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("code", req.Code)
	data.Set("redirect_uri", req.RedirectURI)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrExchangeFailed, err.Error())
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	body, status, err := s.do(httpReq)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrExchangeFailed, err.Error())
	}

	if status < 200 || status >= 300 {
		return nil, errors.Wrapf(domainerrors.ErrExchangeFailed, "token exchange failed with status %d: %s", status, body)
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		Scope       string `json:"scope"`
	}

	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, errors.Wrapf(domainerrors.ErrExchangeFailed, "failed to decode token response: %v", err)
	}

	if tokenResponse.AccessToken == "" {
		return nil, errors.Wrap(domainerrors.ErrExchangeFailed, "token response has no access_token")
	}

	return &entity.ProviderCredential{
		AccessToken: tokenResponse.AccessToken,
		TokenType:   tokenResponse.TokenType,
	}, nil
}

// FetchProfile retrieves the Discord user behind an access token
func (s *OAuthService) FetchProfile(ctx context.Context, accessToken string) (*entity.UserIdentity, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userURL, nil)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrProfileFetchFailed, err.Error())
	}

	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Accept", "application/json")

	body, status, err := s.do(httpReq)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrProfileFetchFailed, err.Error())
	}

	if status < 200 || status >= 300 {
		return nil, errors.Wrapf(domainerrors.ErrProfileFetchFailed, "user info request failed with status %d: %s", status, body)
	}

	var discordUser struct {
		ID            string  `json:"id"`
		Username      string  `json:"username"`
		GlobalName    string  `json:"global_name"`
		Discriminator string  `json:"discriminator"`
		Avatar        *string `json:"avatar"`
		Email         string  `json:"email"`
		Verified      bool    `json:"verified"`
	}

	if err := json.Unmarshal(body, &discordUser); err != nil {
		return nil, errors.Wrapf(domainerrors.ErrProfileFetchFailed, "failed to decode user info response: %v", err)
	}

	if discordUser.ID == "" {
		return nil, errors.Wrap(domainerrors.ErrProfileFetchFailed, "user info response has no id")
	}

	avatarHash := ""
	if discordUser.Avatar != nil {
		avatarHash = *discordUser.Avatar
	}

	return &entity.UserIdentity{
		ProviderID: discordUser.ID,
		Username:   discordUser.Username,
		Email:      discordUser.Email,
		AvatarURL:  entity.AvatarURL(discordUser.ID, avatarHash, discordUser.Discriminator),
	}, nil
}

// do sends a request once and returns the (size-capped) body and status.
// Timeouts surface as errors, never as retries.
func (s *OAuthService) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, errors.Wrapf(err, "request to %s timed out", req.URL.Host)
		}

		return nil, 0, errors.Wrapf(err, "request to %s failed", req.URL.Host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read response body")
	}

	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}

func valueOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
