package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store used to exercise the cache-aside wrapper
// without a Redis server.  Expiries are honored lazily on Get.
type fakeStore struct {
	data    map[string]entry
	getErr  error
	setErr  error
	gets    int
	sets    int
	deletes int
}

type entry struct {
	value []byte
	exp   time.Time // zero means no expiry
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]entry{}} }

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(f.data, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	e := entry{value: value}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	f.data[key] = e
	return nil
}

func (f *fakeStore) SetWithExpireAt(_ context.Context, key string, value []byte, at time.Time) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = entry{value: value, exp: at}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.deletes++
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

type account struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

func TestFind_MissThenHit(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (*account, error) {
		calls++
		return &account{ID: 7, Email: "a@x.com"}, nil
	}

	got, err := aside.Find(ctx, "acct:7", Expiry{}, fetch)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(7), got.ID)
	assert.Equal(t, 1, calls)

	// Second read must come from cache without re-invoking fetch.
	got, err = aside.Find(ctx, "acct:7", Expiry{}, fetch)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, 1, calls, "fetch must not run on a cache hit")
}

func TestFind_NilResultNotCached(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)

	got, err := aside.Find(context.Background(), "acct:0", Expiry{}, func(context.Context) (*account, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, store.data, "nil fetch results must not create cache entries")
}

func TestFind_FetchErrorPropagates(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)
	boom := errors.New("db down")

	_, err := aside.Find(context.Background(), "acct:1", Expiry{}, func(context.Context) (*account, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestFind_StoreReadErrorDegradesToMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	aside := NewAside[account](store, 0)

	got, err := aside.Find(context.Background(), "acct:2", Expiry{}, func(context.Context) (*account, error) {
		return &account{ID: 2}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(2), got.ID)
}

func TestFind_CorruptEntryRefetched(t *testing.T) {
	store := newFakeStore()
	store.data["acct:3"] = entry{value: []byte("{not json")}
	aside := NewAside[account](store, 0)

	calls := 0
	got, err := aside.Find(context.Background(), "acct:3", Expiry{}, func(context.Context) (*account, error) {
		calls++
		return &account{ID: 3}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, calls)
}

func TestCreate_WritesThrough(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, time.Minute)

	got, err := aside.Create(context.Background(), "acct:9", Expiry{}, func(context.Context) (*account, error) {
		return &account{ID: 9, Email: "n@x.com"}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, store.data, "acct:9")

	// The cached copy must be served on the next read.
	calls := 0
	cached, err := aside.Find(context.Background(), "acct:9", Expiry{}, func(context.Context) (*account, error) {
		calls++
		return nil, nil
	})
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "n@x.com", cached.Email)
	assert.Zero(t, calls)
}

func TestCreate_ErrorSkipsCache(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)
	boom := errors.New("duplicate key")

	_, err := aside.Create(context.Background(), "acct:9", Expiry{}, func(context.Context) (*account, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestUpdate_OverwritesEntry(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)
	ctx := context.Background()

	_, err := aside.Create(ctx, "acct:4", Expiry{}, func(context.Context) (*account, error) {
		return &account{ID: 4, Email: "old@x.com"}, nil
	})
	require.NoError(t, err)

	_, err = aside.Update(ctx, "acct:4", Expiry{}, func(context.Context) (*account, error) {
		return &account{ID: 4, Email: "new@x.com"}, nil
	})
	require.NoError(t, err)

	got, err := aside.Find(ctx, "acct:4", Expiry{}, func(context.Context) (*account, error) {
		t.Fatal("fetch must not run, entry should be cached")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
}

func TestDelete_InvalidatesAndReturnsRecord(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)
	ctx := context.Background()

	_, err := aside.Create(ctx, "acct:5", Expiry{}, func(context.Context) (*account, error) {
		return &account{ID: 5}, nil
	})
	require.NoError(t, err)

	got, err := aside.Delete(ctx, "acct:5", func(context.Context) (*account, error) {
		return &account{ID: 5}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(5), got.ID)
	assert.NotContains(t, store.data, "acct:5")
}

func TestWrite_PastAbsoluteExpirySkipped(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)

	got, err := aside.Create(context.Background(), "acct:6", Expiry{At: time.Now().Add(-time.Minute)},
		func(context.Context) (*account, error) {
			return &account{ID: 6}, nil
		})
	require.NoError(t, err)
	require.NotNil(t, got, "authoritative result is still returned")
	assert.Equal(t, uint64(6), got.ID)
	assert.Empty(t, store.data, "no cache entry for a past expiry")
}

func TestWrite_FutureAbsoluteExpiryStored(t *testing.T) {
	store := newFakeStore()
	aside := NewAside[account](store, 0)

	_, err := aside.Create(context.Background(), "acct:8", Expiry{At: time.Now().Add(time.Hour)},
		func(context.Context) (*account, error) {
			return &account{ID: 8}, nil
		})
	require.NoError(t, err)
	assert.Contains(t, store.data, "acct:8")
}

func TestWrite_StoreErrorIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("oom")
	aside := NewAside[account](store, 0)

	got, err := aside.Create(context.Background(), "acct:10", Expiry{}, func(context.Context) (*account, error) {
		return &account{ID: 10}, nil
	})
	require.NoError(t, err, "cache write failures never fail the request")
	assert.NotNil(t, got)
}
