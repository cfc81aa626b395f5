// Package realtime pushes location-scoped events to connected terminals.
// Delivery is fire-and-forget: a lost event never fails or blocks the
// transaction that produced it.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types consumed by live UI clients.
const (
	EventSaleCompleted        = "sale-completed"
	EventSaleVoided           = "sale-voided"
	EventInventoryUpdated     = "inventory-updated"
	EventShiftClosed          = "shift-closed"
	EventOnlineOrderReceived  = "online-order-received"
	EventOnlineOrderCompleted = "online-order-completed"
)

// Event is the wire shape published to a location channel.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	LocationID int64          `json:"location_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	At         time.Time      `json:"at"`
}

// Channel returns the pub/sub channel for a location.
func Channel(locationID int64) string {
	return fmt.Sprintf("tillworks:location:%d:events", locationID)
}

// Publisher publishes events over Redis pub/sub.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher constructs Publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish sends the event to the location channel. Failures are logged and
// swallowed.
func (p *Publisher) Publish(ctx context.Context, eventType string, locationID int64, payload map[string]any) {
	if p == nil || p.client == nil {
		return
	}
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		LocationID: locationID,
		Payload:    payload,
		At:         time.Now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("marshal realtime event", slog.String("type", eventType), slog.Any("error", err))
		}
		return
	}
	if err := p.client.Publish(ctx, Channel(locationID), data).Err(); err != nil {
		if p.logger != nil {
			p.logger.Warn("publish realtime event", slog.String("type", eventType), slog.Any("error", err))
		}
	}
}
