package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channels ...string) (pkgredis.Subscription, error)
	StorageKey(name string) string
	ChangesChannel(name string) string
}

// Redis shares values between processes (several storefront instances, or a
// UI process and a headless sync process) and announces writes over pub/sub.
type Redis struct {
	client redisClient
	origin string
}

// NewRedis wraps client; origin tags published change messages.
func NewRedis(client redisClient, origin string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &Redis{client: client, origin: origin}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.client.StorageKey(key))
	if errors.Is(err, pkgredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return []byte(value), nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.client.StorageKey(key), value, 0); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	r.announce(ctx, key)
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.client.StorageKey(key)); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	r.announce(ctx, key)
	return nil
}

// announce is best effort: the value is already stored and pollers still see it.
func (r *Redis) announce(ctx context.Context, key string) {
	_ = r.client.Publish(ctx, r.client.ChangesChannel(key), r.origin)
}

// Watch subscribes to the key's change channel until ctx is done.
func (r *Redis) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	sub, err := r.client.Subscribe(ctx, r.client.ChangesChannel(key))
	if err != nil {
		return nil, fmt.Errorf("redis subscribe %q: %w", key, err)
	}
	out := make(chan struct{}, 1)
	messages := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}
