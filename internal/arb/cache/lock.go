package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript atomically checks that the caller still owns the lock
// before deleting it. A plain GET followed by a DELETE races: the lock
// can expire and be re-acquired by a different holder between the two
// calls, letting the original caller delete someone else's lock. Doing
// the check-and-delete inside a single EVAL closes that window.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Lock is a held distributed lock. Release is idempotent: calling it after
// the lock has already expired or been released is a no-op.
type Lock struct {
	c     *Cache
	name  string
	token string
}

// AcquireLock attempts to take a named lock for ttl. ok is false if the
// lock is already held by someone else.
func (c *Cache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (lock *Lock, ok bool, err error) {
	token := uuid.NewString()
	acquired, err := c.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}
	return &Lock{c: c, name: name, token: token}, true, nil
}

// Release gives up the lock if, and only if, it is still held by this
// caller. It returns released=false without error if the lock had already
// expired or was taken over by someone else.
func (l *Lock) Release(ctx context.Context) (released bool, err error) {
	res, err := releaseScript.Run(ctx, l.c.rdb, []string{lockKey(l.name)}, l.token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", l.name, err)
	}
	return res == 1, nil
}
