package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHandlerRoutesOrderCreated(t *testing.T) {
	handler := NewEventHandler()

	var got *models.OrderCreatedEvent
	handler.OnOrderCreated(func(ctx context.Context, e *models.OrderCreatedEvent) error {
		got = e
		return nil
	})

	event := models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID: 12,
		UserID:  7,
		Total:   9_000_000,
		Items:   []models.OrderItemData{{ProductID: 3, Quantity: 2, UnitPrice: 4_500_000}},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(12), got.OrderID)
	assert.Equal(t, int64(9_000_000), got.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(3), got.Items[0].ProductID)
}

func TestEventHandlerRoutesStatusChanged(t *testing.T) {
	handler := NewEventHandler()

	var got *models.OrderStatusChangedEvent
	handler.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		got = e
		return nil
	})

	event := models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now(),
		},
		OrderID: 12,
		From:    models.OrderStatusPending,
		To:      models.OrderStatusProcessing,
		Note:    "đang đóng gói",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.OrderStatusProcessing, got.To)
	assert.Equal(t, "đang đóng gói", got.Note)
}

func TestEventHandlerIgnoresUnknownType(t *testing.T) {
	handler := NewEventHandler()
	handler.OnOrderCreated(func(ctx context.Context, e *models.OrderCreatedEvent) error {
		t.Fatal("handler should not run for unknown event types")
		return nil
	})

	err := handler.HandleMessage(context.Background(),
		kafka.Message{Value: []byte(`{"event_id":"evt-3","event_type":"SOMETHING_ELSE"}`)})
	assert.NoError(t, err)
}

func TestEventHandlerRejectsBadPayload(t *testing.T) {
	handler := NewEventHandler()
	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
