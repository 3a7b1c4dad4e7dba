package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// DefaultTTL applies when a caller supplies no expiry.
const DefaultTTL = time.Hour

// Expiry selects how long a cached value lives.  Exactly one of TTL or At
// should be set; when both are zero the wrapper falls back to DefaultTTL.
// An At timestamp already in the past causes the cache write to be skipped
// (with a logged warning) while the authoritative result is still returned.
type Expiry struct {
	TTL time.Duration // relative lifetime
	At  time.Time     // absolute expiry timestamp
}

// Aside decorates a data-access layer with cache-aside semantics for
// values of type T.  Reads check the store first and populate it on a
// miss; writes populate it after the authoritative operation succeeds;
// deletes invalidate the key.  Store failures are treated as misses: the
// data-access call is always the correctness boundary.
//
// Concurrent misses for the same key may both invoke the fetch and both
// write the store.  That race is tolerated because both writes are
// idempotent projections of the same authoritative state.
type Aside[T any] struct {
	store Store
	ttl   time.Duration
}

// NewAside returns a cache-aside wrapper over store.  A non-positive
// defaultTTL selects DefaultTTL.
func NewAside[T any](store Store, defaultTTL time.Duration) *Aside[T] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Aside[T]{store: store, ttl: defaultTTL}
}

// Find implements read-through caching.  On a hit the cached value is
// deserialized and returned without invoking fetch.  On a miss fetch runs;
// a non-nil result is written back with exp before being returned, a nil
// result is returned as-is with no cache write.
func (a *Aside[T]) Find(ctx context.Context, key string, exp Expiry, fetch func(ctx context.Context) (*T, error)) (*T, error) {
	if bs, ok, err := a.store.Get(ctx, key); err == nil && ok {
		var v T
		if err := json.Unmarshal(bs, &v); err == nil {
			return &v, nil
		}
		// Corrupt entry: drop it and fall through to the fetch.
		_ = a.store.Delete(ctx, key)
	} else if err != nil {
		log.Printf("cache: read %q failed, treating as miss: %v", key, err)
	}

	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	a.write(ctx, key, v, exp)
	return v, nil
}

// Create runs the authoritative create and, on success, writes the result
// to the cache.  No existence check happens at this layer; duplicate
// prevention belongs to the caller.
func (a *Aside[T]) Create(ctx context.Context, key string, exp Expiry, create func(ctx context.Context) (*T, error)) (*T, error) {
	v, err := create(ctx)
	if err != nil {
		return nil, err
	}
	if v != nil {
		a.write(ctx, key, v, exp)
	}
	return v, nil
}

// Update runs the authoritative update and, on success, overwrites the
// cache entry with the new value.
func (a *Aside[T]) Update(ctx context.Context, key string, exp Expiry, update func(ctx context.Context) (*T, error)) (*T, error) {
	v, err := update(ctx)
	if err != nil {
		return nil, err
	}
	if v != nil {
		a.write(ctx, key, v, exp)
	}
	return v, nil
}

// Delete runs the authoritative delete, then unconditionally removes the
// cache key, then returns whatever the delete produced.
func (a *Aside[T]) Delete(ctx context.Context, key string, del func(ctx context.Context) (*T, error)) (*T, error) {
	v, err := del(ctx)
	if err != nil {
		return nil, err
	}
	if derr := a.store.Delete(ctx, key); derr != nil {
		log.Printf("cache: invalidate %q failed: %v", key, derr)
	}
	return v, nil
}

// Invalidate removes a key without touching the data-access layer.
func (a *Aside[T]) Invalidate(ctx context.Context, keys ...string) {
	if err := a.store.Delete(ctx, keys...); err != nil {
		log.Printf("cache: invalidate %v failed: %v", keys, err)
	}
}

// write serializes v and stores it under key, honoring the expiry policy.
// Failures are logged and swallowed: the caller already holds the
// authoritative result.
func (a *Aside[T]) write(ctx context.Context, key string, v *T, exp Expiry) {
	bs, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache: marshal for %q failed: %v", key, err)
		return
	}
	switch {
	case !exp.At.IsZero():
		if !exp.At.After(time.Now()) {
			log.Printf("cache: skip write for %q, expireAt %s is in the past", key, exp.At.UTC().Format(time.RFC3339))
			return
		}
		err = a.store.SetWithExpireAt(ctx, key, bs, exp.At)
	case exp.TTL > 0:
		err = a.store.Set(ctx, key, bs, exp.TTL)
	default:
		err = a.store.Set(ctx, key, bs, a.ttl)
	}
	if err != nil {
		log.Printf("cache: write %q failed: %v", key, err)
	}
}
