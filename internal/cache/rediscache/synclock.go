package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SyncLock is an advisory soft lock: SET NX with a TTL. A crashed holder
// simply lets the lock expire, so a stuck run can never block syncs forever.
type SyncLock struct {
	c *redis.Client
}

func NewSyncLock(addr string) *SyncLock {
	return &SyncLock{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (l *SyncLock) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.c.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	return ok, nil
}

// Release deletes the lock only when this owner still holds it. An expired
// and re-acquired lock must not be released by the previous holder.
func (l *SyncLock) Release(ctx context.Context, key, owner string) error {
	const script = `
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`
	if err := l.c.Eval(ctx, script, []string{key}, owner).Err(); err != nil {
		return errors.Wrap(err, "redis release lock")
	}
	return nil
}
