package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"skymm/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	loginEmbedTitle = "🔐 Novo Login"
	loginEmbedColor = 5793266
)

// webhookPublisher posts login events to a Discord webhook as an embed
type webhookPublisher struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Author    *webhookEmbedAuthor `json:"author,omitempty"`
	Fields    []webhookEmbedField `json:"fields"`
	Thumbnail *webhookEmbedImage  `json:"thumbnail,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

type webhookEmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookEmbedImage struct {
	URL string `json:"url"`
}

// NewWebhookPublisher creates a publisher for a Discord webhook URL
func NewWebhookPublisher(webhookURL string, timeout time.Duration, logger *slog.Logger) service.EventPublisher {
	return &webhookPublisher{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// PublishLoginEvent posts one embed describing the login
func (p *webhookPublisher) PublishLoginEvent(ctx context.Context, event *service.LoginEvent) error {
	body, err := json.Marshal(webhookPayload{Embeds: []webhookEmbed{loginEmbed(event)}})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// the webhook URL embeds its own token, keep it out of the error
		return errors.New("webhook request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook returned non-success status: %d", resp.StatusCode)
	}

	p.logger.Debug("[Webhook] Login event delivered",
		slog.String("event_id", event.EventID),
	)

	return nil
}

// Close releases resources (no-op for HTTP client)
func (p *webhookPublisher) Close() error {
	return nil
}

func loginEmbed(event *service.LoginEvent) webhookEmbed {
	embed := webhookEmbed{
		Title: loginEmbedTitle,
		Color: loginEmbedColor,
		Author: &webhookEmbedAuthor{
			Name:    event.Username,
			IconURL: event.AvatarURL,
		},
		Fields: []webhookEmbedField{
			{Name: "👤 Usuário Discord", Value: event.Username + " (ID: " + event.DiscordID + ")"},
			{Name: "📧 Email", Value: valueOrDash(event.Email)},
			{Name: "📅 Data e Hora", Value: event.OccurredAt.UTC().Format(time.RFC3339)},
		},
		Timestamp: event.OccurredAt.UTC().Format(time.RFC3339),
	}

	if event.AvatarURL != "" {
		embed.Thumbnail = &webhookEmbedImage{URL: event.AvatarURL}
	}

	return embed
}

func valueOrDash(v string) string {
	if v == "" {
		return "-"
	}

	return v
}
