// Package cache wraps the Redis key-value store behind a small client and
// provides a generic cache-aside decorator for repositories.  The cache is
// an accelerator only: the persisted record is always the source of truth,
// and every helper here degrades to a miss rather than failing a request.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// opTimeout bounds every individual store call.  A timeout is a failure of
// that single operation, never retried here.
const opTimeout = 3 * time.Second

// Store is the subset of key-value operations the cache-aside wrapper
// needs.  Client implements it against Redis; tests substitute an
// in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetWithExpireAt(ctx context.Context, key string, value []byte, at time.Time) error
	Delete(ctx context.Context, keys ...string) error
}

// Client wraps a shared *redis.Client.  The connection is a long-lived
// process-wide handle; no request-local clients are created.
type Client struct {
	rdb *redis.Client
}

// NewClient returns a Client bound to the given Redis connection.
func NewClient(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Ping reports store reachability for health checks.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Get returns the raw value at key.  The second return is false on a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	bs, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bs, true, nil
}

// Set writes value at key with a relative TTL.  A zero ttl stores the key
// without expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetWithExpireAt writes value at key with an absolute expiry.  When the
// timestamp is already in the past the write is skipped with a warning:
// the caller's authoritative write has succeeded, only the cache copy is
// dropped.
func (c *Client) SetWithExpireAt(ctx context.Context, key string, value []byte, at time.Time) error {
	if !at.After(time.Now()) {
		log.Printf("cache: skip write for %q, expireAt %s is in the past", key, at.UTC().Format(time.RFC3339))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return err
	}
	return c.rdb.ExpireAt(ctx, key, at).Err()
}

// Delete removes the given keys.  Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.Del(ctx, keys...).Err()
}

// GetJSON unmarshals the value at key into out.  The bool reports a hit.
func (c *Client) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	bs, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and writes it at key with a relative TTL.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, bs, ttl)
}

// ----- hash operations -----

// HSet writes one field of a hash.
func (c *Client) HSet(ctx context.Context, key, field string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.HSet(ctx, key, field, value).Err()
}

// HGet reads one field of a hash.  The bool reports whether the field exists.
func (c *Client) HGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	bs, err := c.rdb.HGet(ctx, key, field).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bs, true, nil
}

// HGetAll returns every field of a hash.  A missing key yields an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.HGetAll(ctx, key).Result()
}

// HDel removes fields from a hash.
func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.HDel(ctx, key, fields...).Err()
}

// ----- list operations -----

// LPush prepends values to a list.
func (c *Client) LPush(ctx context.Context, key string, values ...any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.LPush(ctx, key, values...).Err()
}

// LRange returns the list elements between start and stop inclusive.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

// LTrim trims the list to the elements between start and stop inclusive.
func (c *Client) LTrim(ctx context.Context, key string, start, stop int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.LTrim(ctx, key, start, stop).Err()
}

// ----- TTL management -----

// Expire sets a relative TTL on an existing key.  Returns false when the
// key does not exist.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.Expire(ctx, key, ttl).Result()
}

// TTL returns the remaining lifetime of a key.  Redis reports -1 for keys
// without expiry and -2 for missing keys; both are passed through.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.TTL(ctx, key).Result()
}

// Persist removes the TTL from a key, making it live until deleted.
func (c *Client) Persist(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.Persist(ctx, key).Result()
}
