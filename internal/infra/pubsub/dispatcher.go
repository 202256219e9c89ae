package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"skymm/config"
	"skymm/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultPublishTimeout = 5 * time.Second

// Dispatcher publishes login events on their own goroutines so a slow or
// failing notifier never delays the login redirect.
type Dispatcher struct {
	ctx       context.Context
	publisher service.EventPublisher
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// DispatcherParams holds dependencies for Dispatcher, injected by Fx
type DispatcherParams struct {
	fx.In

	Lc        fx.Lifecycle
	Ctx       context.Context
	Config    *config.Config
	Publisher service.EventPublisher
	Logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. Shutdown waits for in-flight
// publishes until the stop deadline.
func NewDispatcher(params DispatcherParams) service.EventDispatcher {
	timeout := defaultPublishTimeout
	if params.Config.Notifier != nil && params.Config.Notifier.Timeout > 0 {
		timeout = params.Config.Notifier.Timeout
	}

	d := newDispatcher(params.Ctx, params.Publisher, timeout, params.Logger)

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return d.Wait(ctx)
		},
	})

	return d
}

func newDispatcher(ctx context.Context, publisher service.EventPublisher, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:       ctx,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dispatch publishes the event in the background. Failures are logged only.
func (d *Dispatcher) Dispatch(event *service.LoginEvent) {
	if event == nil {
		return
	}

	d.wg.Go(func() {
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		defer cancel()

		if err := d.publisher.PublishLoginEvent(ctx, event); err != nil {
			d.logger.Warn("Failed to publish login event",
				slog.String("event_id", event.EventID),
				slog.String("request_id", event.RequestID),
				slog.Any("error", err),
			)
		}
	})
}

// Wait blocks until every dispatched event finished or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "login events still in flight")
	}
}
