package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/internal/decision"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeViewUpdated    EventType = "view.updated"
	EventTypeTimerTick      EventType = "timer.tick"
	EventTypeGameEnded      EventType = "game.ended"
	EventTypeSessionDeleted EventType = "session.deleted"
)

// Event is the envelope sent over a game's channel.
type Event struct {
	Type   EventType       `json:"type"`
	GameID string          `json:"game_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Channel names the Pub/Sub channel of one game.
func Channel(gameID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", gameID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishView publishes a view.updated event, followed by game.ended when
// the view carries an ending.
func (b *Broadcaster) PublishView(ctx context.Context, gameID uuid.UUID, v engine.View) error {
	if err := b.publishToGame(ctx, gameID, EventTypeViewUpdated, v); err != nil {
		return err
	}
	if v.Ending != nil {
		return b.publishToGame(ctx, gameID, EventTypeGameEnded, v.Ending)
	}
	return nil
}

// PublishCountdown publishes a timer.tick event
func (b *Broadcaster) PublishCountdown(ctx context.Context, gameID uuid.UUID, cd decision.Countdown) error {
	return b.publishToGame(ctx, gameID, EventTypeTimerTick, map[string]any{
		"nodeId":    cd.NodeID,
		"turn":      cd.Turn,
		"remaining": cd.Remaining,
		"limit":     cd.Limit,
		"urgent":    cd.Urgent(),
	})
}

// PublishSessionDeleted tells subscribers the game is gone.
func (b *Broadcaster) PublishSessionDeleted(ctx context.Context, gameID uuid.UUID) error {
	return b.publishToGame(ctx, gameID, EventTypeSessionDeleted, map[string]any{"game_id": gameID.String()})
}

// Subscribe opens a subscription to one game's channel. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, gameID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(gameID))
}

// publishToGame publishes an event to the game-specific channel
func (b *Broadcaster) publishToGame(ctx context.Context, gameID uuid.UUID, eventType EventType, payload any) error {
	channel := Channel(gameID)

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to marshal event data", "error", err, "event_type", eventType)
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	msg, err := json.Marshal(Event{Type: eventType, GameID: gameID.String(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, msg).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", eventType,
	)

	return nil
}
