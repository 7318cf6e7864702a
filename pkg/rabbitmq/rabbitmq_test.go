package rabbitmq

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productapi/internal/models"
)

func TestNewPublishing(t *testing.T) {
	id := uuid.New()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := models.ProductEvent{
		Type:       models.ProductUpdated,
		ProductID:  id,
		ActorID:    "auth0|alice",
		OccurredAt: at,
		Product: &models.ProductResponse{
			ID:    id,
			Name:  "Fast",
			Price: decimal.RequireFromString("999.99"),
		},
	}

	msg, err := newPublishing(event)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, models.ProductUpdated, msg.Type)
	assert.Equal(t, at, msg.Timestamp)

	var decoded models.ProductEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, id, decoded.ProductID)
	assert.Equal(t, "auth0|alice", decoded.ActorID)
	require.NotNil(t, decoded.Product)
	assert.Equal(t, "Fast", decoded.Product.Name)
}

func TestNewPublishing_RequiresType(t *testing.T) {
	_, err := newPublishing(models.ProductEvent{ProductID: uuid.New()})
	assert.Error(t, err)
}

func TestPublishOnClosedClient(t *testing.T) {
	c := &Client{exchange: DefaultExchange}
	err := c.PublishProductEvent(context.Background(), models.ProductEvent{Type: models.ProductDeleted, ProductID: uuid.New()})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

func TestClient_Publish(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}
	queue := "product_events_test_" + uuid.NewString()
	c, err := NewClient(Config{URL: url, Exchange: "product.events.test", Queue: queue})
	require.NoError(t, err)
	defer c.Close()
	defer c.channel.QueueDelete(queue, false, false, false)

	event := models.ProductEvent{Type: models.ProductCreated, ProductID: uuid.New(), OccurredAt: time.Now().UTC()}
	require.NoError(t, c.PublishProductEvent(context.Background(), event))

	var delivery amqp.Delivery
	var ok bool
	require.Eventually(t, func() bool {
		delivery, ok, err = c.channel.Get(queue, true)
		return err == nil && ok
	}, 5*time.Second, 100*time.Millisecond)
	assert.Equal(t, models.ProductCreated, delivery.RoutingKey)
}
