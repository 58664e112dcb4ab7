package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/remworker/resilience"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// wait deadline.
var ErrLockTimeout = errors.New("redis: lock wait timed out")

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out named leases backed by SET NX PX. A lease expires after
// ttl even if its holder never releases it.
type Locker struct {
	client    *Client
	namespace string
	ttl       time.Duration
	wait      time.Duration
	poll      time.Duration
}

// NewLocker creates a Locker whose keys live under <prefix>:<namespace>:<name>.
// Lock waits up to ttl for a held lease.
func NewLocker(client *Client, namespace string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{client: client, namespace: namespace, ttl: ttl, wait: ttl, poll: 50 * time.Millisecond}
}

// Lock blocks until the lease for name is acquired, ctx ends, or the wait
// deadline passes. The returned function releases the lease only if it is
// still held by this caller.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.client.Key(l.namespace, name)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %q: %w", name, err)
		}
		if ok {
			return func() {
				// Release must survive a cancelled caller context.
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
					l.client.log.Warn("lock release failed", map[string]interface{}{"key": key, "error": err.Error()})
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		if err := resilience.Sleep(ctx, l.poll); err != nil {
			return nil, err
		}
	}
}
