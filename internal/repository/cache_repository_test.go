package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func TestCacheRepositoryRoundTrip(t *testing.T) {
	store := newFakeRedis()
	repo := newCacheRepository(store, nil, CacheBreakerSettings{}, nil)

	require.NoError(t, repo.Set(context.Background(), "timetable:proposal:p1", map[string]int{"hours": 4}, time.Minute))

	var got map[string]int
	require.NoError(t, repo.Get(context.Background(), "timetable:proposal:p1", &got))
	assert.Equal(t, 4, got["hours"])

	err := repo.Get(context.Background(), "timetable:proposal:missing", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	store := newFakeRedis()
	store.values["timetable:schedules:a"] = []byte(`1`)
	store.values["timetable:schedules:b"] = []byte(`2`)
	store.values["timetable:proposal:p1"] = []byte(`3`)
	repo := newCacheRepository(store, nil, CacheBreakerSettings{}, nil)

	require.NoError(t, repo.DeleteByPattern(context.Background(), "timetable:schedules:*"))

	assert.NotContains(t, store.values, "timetable:schedules:a")
	assert.NotContains(t, store.values, "timetable:schedules:b")
	assert.Contains(t, store.values, "timetable:proposal:p1")
}

func TestCacheRepositoryBreakerTurnsFailuresIntoMisses(t *testing.T) {
	store := newFakeRedis()
	store.err = errors.New("connection refused")
	repo := newCacheRepository(store, nil, CacheBreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	var dest map[string]int
	for i := 0; i < 2; i++ {
		err := repo.Get(context.Background(), "k", &dest)
		require.Error(t, err)
		assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
	}
	calls := store.calls

	err := repo.Get(context.Background(), "k", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.Equal(t, calls, store.calls, "open breaker must not reach redis")
}

func TestCacheRepositoryMissesDoNotTripBreaker(t *testing.T) {
	store := newFakeRedis()
	repo := newCacheRepository(store, nil, CacheBreakerSettings{MaxFailures: 1}, nil)

	var dest int
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, repo.Get(context.Background(), "absent", &dest), appErrors.ErrCacheMiss)
	}
	assert.Equal(t, 3, store.calls)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, CacheBreakerSettings{}, nil)
	var dest int

	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Close())
}

type fakeRedis struct {
	values map[string][]byte
	err    error
	calls  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string][]byte)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.calls++
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.calls++
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	f.calls++
	if f.err != nil {
		return redis.NewScanCmdResult(nil, 0, f.err)
	}
	prefix := match
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	var keys []string
	for k := range f.values {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.calls++
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, k := range keys {
		delete(f.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
