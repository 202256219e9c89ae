package pubsub

import (
	"context"
	"log/slog"

	"skymm/config"
	"skymm/internal/domain/constants"
	"skymm/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// noopPublisher is used when no notifier provider is configured
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishLoginEvent(ctx context.Context, event *service.LoginEvent) error {
	p.logger.Debug("[NoopNotifier] Login notifications disabled, skipping",
		slog.String("event_id", event.EventID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher creates an EventPublisher based on configuration
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.Notifier
	logger := params.Logger

	if cfg == nil || cfg.Provider == constants.NotifierProviderNone {
		logger.Info("Login notifier not configured, using no-op publisher")

		return &noopPublisher{logger: logger}, nil
	}

	var publisher service.EventPublisher
	var err error

	switch cfg.Provider {
	case constants.NotifierProviderWebhook:
		if cfg.WebhookURL == "" {
			return nil, errors.New("webhook URL is required for webhook provider")
		}
		logger.Info("Using Discord webhook for login notifications")

		publisher = NewWebhookPublisher(cfg.WebhookURL, cfg.Timeout, logger)

	case constants.NotifierProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP publisher for login notifications",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, cfg.Timeout, logger)

	case constants.NotifierProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for google provider")
		}
		logger.Info("Using Google Pub/Sub for login notifications",
			slog.String("project_id", cfg.ProjectID),
			slog.String("topic_id", cfg.TopicID),
		)

		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown notifier provider: %s", cfg.Provider)
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing login event publisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

// Module provides the login notification FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
	fx.Provide(NewDispatcher),
)
