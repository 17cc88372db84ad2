package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"pumprug/domain/events"
	"pumprug/domain/interfaces"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// channelPrefix namespaces the broadcast channels so multiple deployments
// can share one redis
const channelPrefix = "pumprug.events."

// RedisEventPublisher implements the EventPublisher interface over redis
// pub/sub. Each event type gets its own channel so consumers subscribe to
// exactly what they care about.
type RedisEventPublisher struct {
	client *redis.Client
}

// NewRedisEventPublisher creates a new redis event publisher
func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

// Publish serializes the event and broadcasts it on its type channel
func (p *RedisEventPublisher) Publish(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := channelPrefix + string(event.Type())
	if err := p.client.Publish(context.Background(), channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"channel":   channel,
	}).Debug("Event broadcast")

	return nil
}

// Subscribe returns a pubsub subscription for the given event types.
// Callers own the subscription and must Close it.
func (p *RedisEventPublisher) Subscribe(ctx context.Context, types ...events.EventType) *redis.PubSub {
	channels := make([]string, len(types))
	for i, t := range types {
		channels[i] = channelPrefix + string(t)
	}
	return p.client.Subscribe(ctx, channels...)
}

var _ interfaces.EventPublisher = (*RedisEventPublisher)(nil)
