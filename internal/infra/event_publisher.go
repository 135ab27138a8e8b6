package infra

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"dinesync/internal/transport"
)

type EventPublisherInterface interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// RedisEventPublisher pushes named events onto the pub/sub channels client
// views subscribe to. The frame matches what the transport's subscribe
// side unwraps.
type RedisEventPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

var _ EventPublisherInterface = (*RedisEventPublisher)(nil)

func NewRedisEventPublisher(rdb *redis.Client, log zerolog.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{
		rdb: rdb,
		log: log.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(transport.Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		p.log.Warn().Err(err).Str("channel", channel).Str("event", event).Msg("publish failed")
		return err
	}
	return nil
}
