package kvstore

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// changeChannelPrefix namespaces the pub/sub channels used to broadcast key
// changes to subscribers.
const changeChannelPrefix = "adscheck:changed:"

// RedisStore is a Store backed by Redis. Writes publish a change
// notification so other processes sharing the store observe updates.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates and tests a Redis-backed store from a redis URL.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: rdb}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			result[keys[i]] = []byte(str)
		}
	}
	return result, nil
}

// Set implements Store. Each key is SET individually and a change
// notification is published for it.
func (s *RedisStore) Set(ctx context.Context, values map[string][]byte) error {
	for key, value := range values {
		if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
			return err
		}
		if err := s.client.Publish(ctx, changeChannelPrefix+key, "").Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to publish key change notification")
		}
	}
	return nil
}

// Subscribe implements Store using Redis pub/sub.
func (s *RedisStore) Subscribe(ctx context.Context, keys ...string) (<-chan string, error) {
	channels := make([]string, 0, len(keys))
	for _, key := range keys {
		channels = append(channels, changeChannelPrefix+key)
	}
	sub := s.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- msg.Channel[len(changeChannelPrefix):]:
				default:
					// Slow subscriber; drop rather than block the reader.
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
