package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisURL = "redis://localhost:6379"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and compare-and-delete.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker connects to url and verifies the connection.
func NewRedisLocker(ctx context.Context, url string) (*RedisLocker, error) {
	if url == "" {
		url = DefaultRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return NewRedisLockerWithClient(client), nil
}

func NewRedisLockerWithClient(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "nodeflow:lock:"}
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func (l *RedisLocker) key(resource string) string {
	return l.prefix + resource
}

func (l *RedisLocker) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	resource, owner, err := normalize(resource, owner)
	if err != nil {
		return false, err
	}

	err = l.client.SetArgs(ctx, l.key(resource), owner, redis.SetArgs{Mode: "NX", TTL: normalizeTTL(ttl)}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", resource, err)
	}

	return true, nil
}

func (l *RedisLocker) Renew(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	resource, owner, err := normalize(resource, owner)
	if err != nil {
		return false, err
	}

	n, err := renewScript.Run(ctx, l.client, []string{l.key(resource)}, owner, normalizeTTL(ttl).Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lock %s: %w", resource, err)
	}

	return n == 1, nil
}

func (l *RedisLocker) Release(ctx context.Context, resource, owner string) (bool, error) {
	resource, owner, err := normalize(resource, owner)
	if err != nil {
		return false, err
	}

	n, err := releaseScript.Run(ctx, l.client, []string{l.key(resource)}, owner).Int()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", resource, err)
	}

	return n == 1, nil
}
