package pubsub

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"skymm/internal/domain/service"
	mockService "skymm/internal/mocks/service"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_DispatchPublishesInBackground(t *testing.T) {
	publisher := mockService.NewMockEventPublisher(t)
	event := &service.LoginEvent{EventID: "evt-1", Type: service.LoginEventTypeLogin}

	release := make(chan struct{})
	publisher.EXPECT().
		PublishLoginEvent(mock.Anything, event).
		RunAndReturn(func(ctx context.Context, _ *service.LoginEvent) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			<-release

			return nil
		}).
		Once()

	d := newDispatcher(context.Background(), publisher, time.Second, discardLogger())

	// Dispatch returns while the publisher is still blocked
	d.Dispatch(event)
	close(release)

	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatcher_PublishFailureIsSwallowed(t *testing.T) {
	publisher := mockService.NewMockEventPublisher(t)
	publisher.EXPECT().
		PublishLoginEvent(mock.Anything, mock.Anything).
		Return(errors.New("webhook returned non-success status: 500")).
		Once()

	d := newDispatcher(context.Background(), publisher, time.Second, discardLogger())

	assert.NotPanics(t, func() { d.Dispatch(&service.LoginEvent{EventID: "evt-2"}) })
	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatcher_NilEventIgnored(t *testing.T) {
	publisher := mockService.NewMockEventPublisher(t)
	d := newDispatcher(context.Background(), publisher, time.Second, discardLogger())

	d.Dispatch(nil)

	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatcher_WaitHonoursDeadline(t *testing.T) {
	publisher := mockService.NewMockEventPublisher(t)
	release := make(chan struct{})
	defer close(release)

	publisher.EXPECT().
		PublishLoginEvent(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, *service.LoginEvent) error {
			<-release

			return nil
		}).
		Maybe()

	d := newDispatcher(context.Background(), publisher, time.Minute, discardLogger())
	d.Dispatch(&service.LoginEvent{EventID: "evt-3"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, d.Wait(ctx))
}
