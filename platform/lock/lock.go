// Package lock provides a Redis-backed single-writer gate.
// A lease is a random token stored under the key with a TTL; only the holder of the
// token can release it, so an expired lease taken over by another process is never
// deleted by the original holder.
package lock

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases on named keys.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	client redis.UniversalClient
	key    string
	token  string
}

// New wraps an existing redis client. Keys are namespaced with prefix.
func New(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// NewClient parses a redis:// or rediss:// URL into a client.
func NewClient(redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if tlsInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// Acquire takes the lease on key for ttl, or returns ErrNotAcquired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock: no redis client")
	}

	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Lease{client: l.client, key: fullKey, token: token}, nil
}

// Release drops the lease if it is still held by this token.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.token == "" {
		return nil
	}
	_, err := releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Int()
	le.token = ""
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", le.key, err)
	}
	return nil
}
