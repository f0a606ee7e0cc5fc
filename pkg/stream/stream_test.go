package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booking-system/internal/domain/event"
)

type fakeAdder struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	return redis.NewStringResult("1-1", nil)
}

func TestPublishWireFormat(t *testing.T) {
	fake := &fakeAdder{}
	p := &Publisher{rdb: fake, log: zap.NewNop()}

	tenantID := uuid.New()
	env, err := event.New(event.BookingCreated, tenantID, event.BookingCreatedPayload{
		BookingID: uuid.New(),
		TenantID:  tenantID,
		Status:    "pendente",
	})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "booking-events", env))
	require.Len(t, fake.calls, 1)

	args := fake.calls[0]
	assert.Equal(t, "booking-events", args.Stream)
	assert.EqualValues(t, 1000, args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]any)
	assert.Equal(t, event.BookingCreated, values["event_type"])
	assert.Contains(t, values["payload"].(string), `"status":"pendente"`)
	assert.Contains(t, values["metadata"].(string), `"event_version":"1"`)
}

func TestPublishSurfacesErrors(t *testing.T) {
	fake := &fakeAdder{err: errors.New("connection refused")}
	p := &Publisher{rdb: fake, log: zap.NewNop()}

	env, err := event.New(event.TenantDeleted, uuid.New(), event.TenantDeletedPayload{TenantID: uuid.New()})
	require.NoError(t, err)
	assert.Error(t, p.Publish(context.Background(), "deletion-events", env))
}

func TestEnvelopeValuesRoundTrip(t *testing.T) {
	tenantID := uuid.New()
	env, err := event.New(event.ResourceDeleted, tenantID, event.ResourceDeletedPayload{
		ResourceID: uuid.New(),
		TenantID:   tenantID,
	})
	require.NoError(t, err)

	values, err := env.Values()
	require.NoError(t, err)

	back, err := event.FromValues(values)
	require.NoError(t, err)
	assert.Equal(t, env.Type, back.Type)
	assert.Equal(t, tenantID, back.Metadata.TenantID)
	assert.Equal(t, event.Version, back.Metadata.EventVersion)

	var payload event.ResourceDeletedPayload
	require.NoError(t, back.Decode(&payload))
	assert.Equal(t, tenantID, payload.TenantID)
}

func TestFromValuesRejectsMissingType(t *testing.T) {
	_, err := event.FromValues(map[string]any{"payload": "{}"})
	assert.Error(t, err)
}

func TestConsumerDispatch(t *testing.T) {
	c := NewConsumer(nil, "booking-events", "user-service", "user-worker-1", zap.NewNop())

	var seen []string
	c.Handle(event.BookingCreated, func(ctx context.Context, env event.Envelope) error {
		seen = append(seen, env.Type)
		return nil
	})

	env, err := event.New(event.BookingCreated, uuid.New(), event.BookingCreatedPayload{})
	require.NoError(t, err)
	values, err := env.Values()
	require.NoError(t, err)

	handler, ok := c.handlers[event.BookingCreated]
	require.True(t, ok)
	parsed, err := event.FromValues(values)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), parsed))
	assert.Equal(t, []string{event.BookingCreated}, seen)

	_, ok = c.handlers[event.TenantDeleted]
	assert.False(t, ok)
}
