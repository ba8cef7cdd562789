package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces channel rows within a shared Redis instance.
const redisKeyPrefix = "channel:"

// redisChannel is the JSON wire shape stored per key.
type redisChannel struct {
	Name    string            `json:"name"`
	Source  string            `json:"source"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Redis is a Registry backed by one JSON value per channel key.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to redisURL and verifies reachability with a ping.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("registry: parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("registry: pinging redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Close closes the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Put writes a channel, for out-of-band seeding.
func (r *Redis) Put(ctx context.Context, c Channel) error {
	raw, err := json.Marshal(redisChannel{Name: c.Name, Source: c.Source, Headers: c.Headers})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+c.ID, raw, 0).Err()
}

func (r *Redis) GetByID(ctx context.Context, id string) (*Channel, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: redis get %s: %w", id, err)
	}

	var rc redisChannel
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("registry: decoding channel %s: %w", id, err)
	}
	return &Channel{ID: id, Name: rc.Name, Source: rc.Source, Headers: rc.Headers}, nil
}
