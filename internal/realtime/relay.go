package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay notifies the local hub directly and forwards change notifications
// through a Redis channel so every other API instance reloads its subscribers.
// Messages carry the sending instance's id; Run ignores its own.
type RedisRelay struct {
	client   *redis.Client
	channel  string
	hub      *Hub
	logger   *zap.Logger
	instance string
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, channel: channel, hub: hub, logger: logger, instance: uuid.NewString()}
}

// Changed updates this instance's subscribers, then publishes topics for the
// other instances. A failed publish only affects remote subscribers.
func (r *RedisRelay) Changed(ctx context.Context, topics ...string) {
	ctx = context.WithoutCancel(ctx)
	r.hub.Changed(ctx, topics...)
	for _, topic := range topics {
		if err := r.client.Publish(ctx, r.channel, r.instance+" "+topic).Err(); err != nil {
			r.logger.Warn("relay publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Run consumes the channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			origin, raw, _ := strings.Cut(msg.Payload, " ")
			if origin == r.instance {
				continue
			}
			topic, err := ParseTopic(raw)
			if err != nil {
				r.logger.Warn("relay dropped message", zap.String("payload", msg.Payload))
				continue
			}
			r.hub.Changed(ctx, topic)
		}
	}
}
