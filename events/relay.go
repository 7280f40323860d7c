package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Envelope is the wire shape of an event forwarded outside the process.
type Envelope struct {
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps event for publication.
func NewEnvelope(event any, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event %s: %w", eventName(event), err)
	}
	return Envelope{
		Name:       eventName(event),
		OccurredAt: at.UTC(),
		Payload:    payload,
	}, nil
}

// Publisher is the subset of a Redis client the relay needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisRelay forwards every bus event to a Redis pub/sub channel so other
// services (the portal front end's push gateway, reporting jobs) can react.
// Relay failures are logged and never reach the publisher.
type RedisRelay struct {
	client  Publisher
	channel string
	log     zerolog.Logger
	now     func() time.Time
}

// NewRedisRelay creates a relay publishing on channel.
func NewRedisRelay(client Publisher, channel string, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, log: log, now: time.Now}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Attach subscribes the relay to every event on bus.
func (r *RedisRelay) Attach(bus *Bus) func() {
	return bus.SubscribeAll(r.forward)
}

func (r *RedisRelay) forward(ctx context.Context, event any) {
	env, err := NewEnvelope(event, r.now())
	if err != nil {
		r.log.Warn().Err(err).Msg("event relay: encode failed")
		return
	}
	msg, err := json.Marshal(env)
	if err != nil {
		r.log.Warn().Err(err).Str("event", env.Name).Msg("event relay: encode failed")
		return
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		r.log.Warn().Err(err).Str("event", env.Name).Str("channel", r.channel).Msg("event relay: publish failed")
	}
}
