package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Advisory lock built on SET NX with a TTL.  It is cooperative: only
// participants that check the lock are excluded, direct writes that bypass
// it are not prevented.  Release is owner-checked so a holder whose TTL
// lapsed cannot delete a lock someone else has since acquired.  No flow in
// this server currently blocks on the lock; it is an exported building
// block only.

// releaseScript deletes the key only when its value still matches the
// owner token that acquired it.  GET+DEL must be atomic, hence Lua.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// AcquireLock attempts to take the lock named key on behalf of owner for
// ttl.  It returns true when the lock was free and is now held.  The owner
// token must be unique per holder (a UUID is typical); it is required again
// at release time.
func (c *Client) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.SetNX(ctx, key, owner, ttl).Result()
}

// ReleaseLock releases the lock named key if and only if owner still holds
// it.  It returns true when the lock was deleted, false when it had already
// expired or belongs to another owner.
func (c *Client) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	n, err := releaseScript.Run(ctx, c.rdb, []string{key}, owner).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
