package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToLocationChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), Channel(7))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	pub := NewPublisher(client, nil)
	pub.Publish(context.Background(), EventSaleCompleted, 7, map[string]any{"sale_number": "MAIN-20240115-4"})

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
	require.Equal(t, EventSaleCompleted, evt.Type)
	require.Equal(t, int64(7), evt.LocationID)
	require.Equal(t, "MAIN-20240115-4", evt.Payload["sale_number"])
	require.NotEmpty(t, evt.ID)
	require.WithinDuration(t, time.Now().UTC(), evt.At, time.Minute)
}

func TestPublishSurvivesBrokerLoss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()

	pub := NewPublisher(client, nil)
	// Must not panic or return an error path to the caller.
	pub.Publish(context.Background(), EventInventoryUpdated, 1, nil)
}
