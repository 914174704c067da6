package rediscache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// release deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is an advisory lock on a single key (SET NX PX).
type Locker struct {
	c *redis.Client
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{c: c}
}

// Acquire returns a release func when the lock was taken, ok=false when
// somebody else holds it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	ok, err = l.c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "redis lock")
	}
	if !ok {
		return nil, false, nil
	}
	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.c, []string{key}, token).Err(); err != nil {
			return errors.Wrap(err, "redis unlock")
		}
		return nil
	}
	return release, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "lock token")
	}
	return hex.EncodeToString(b), nil
}
