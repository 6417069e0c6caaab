// Package lock keeps a scheduled job to one replica at a time using a Redis
// key with an expiry.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrEmptyKey is returned for a blank lock key.
var ErrEmptyKey = errors.New("lock key is empty")

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Connect opens a client and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("lock: ping: %w", err)
	}
	return client, nil
}

// RedisLocker hands out expiring locks under a common key prefix.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker wraps client. Keys are stored as prefix + ":" + key.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// TryLock makes one attempt at key. When another holder has it, ok is false
// and err is nil. The returned release is safe to call after expiry.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrEmptyKey
	}
	full := l.key(key)
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{full}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("unlock %s: %w", full, err)
		}
		return nil
	}
	return release, true, nil
}

func (l *RedisLocker) key(k string) string {
	if l.prefix == "" {
		return k
	}
	return l.prefix + ":" + k
}
