package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRedisStore(t *testing.T) *RedisStore {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb, "test:")
	t.Cleanup(func() {
		s.Close()
		mr.Close()
	})
	return s
}

func newSQLStore(t *testing.T) *SQLStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	s := NewSQLStore(db, "")
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  newRedisStore(t),
		"sql":    newSQLStore(t),
	}
}

func TestStore_GetMissingKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			raw, found, err := s.Get(context.Background(), KeyUsers)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, raw)
		})
	}
}

func TestStore_SetThenGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, KeyCurrentUserID, []byte(`"u1"`)))
			raw, found, err := s.Get(ctx, KeyCurrentUserID)
			require.NoError(t, err)
			assert.True(t, found)
			assert.JSONEq(t, `"u1"`, string(raw))
		})
	}
}

func TestStore_UpdateSeesLatestValue(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				require.NoError(t, Mutate(ctx, s, "counter", func(n int) (int, error) {
					return n + 1, nil
				}))
			}
			n, err := Load(ctx, s, "counter", -1)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestStore_UpdaterErrorAbandonsWrite(t *testing.T) {
	errStop := errors.New("stop")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, Save(ctx, s, KeyListings, map[string]string{"a": "1"}))
			err := Mutate(ctx, s, KeyListings, func(m map[string]string) (map[string]string, error) {
				m["b"] = "2"
				return m, errStop
			})
			assert.ErrorIs(t, err, errStop)
			got, err := Load(ctx, s, KeyListings, map[string]string{})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "1"}, got)
		})
	}
}

func TestStore_LoadReturnsDefault(t *testing.T) {
	s := NewMemoryStore()
	got, err := Load(context.Background(), s, KeyFavorites, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, got)
}

func TestStore_LoadDecodeError(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), KeyUsers, []byte("{not json")))
	_, err := Load(context.Background(), s, KeyUsers, map[string]string{})
	assert.Error(t, err)
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	for _, name := range []string{"memory", "redis"} {
		s := backends(t)[name]
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers = 8
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, Mutate(ctx, s, "counter", func(n int) (int, error) {
						return n + 1, nil
					}))
				}()
			}
			wg.Wait()
			n, err := Load(ctx, s, "counter", 0)
			require.NoError(t, err)
			assert.Equal(t, workers, n)
		})
	}
}

func TestStore_SubscribeReceivesChanges(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ch, err := s.Subscribe(ctx)
			require.NoError(t, err)

			require.NoError(t, Mutate(ctx, s, KeyMessages, func(v []string) ([]string, error) {
				return append(v, "hello"), nil
			}))

			select {
			case c := <-ch:
				assert.Equal(t, KeyMessages, c.Key)
			case <-time.After(2 * time.Second):
				t.Fatal("no change notification received")
			}
		})
	}
}

func TestStore_SubscribeClosesOnCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)
	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestRedisStore_UsesNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Set(context.Background(), KeyUsers, []byte(`{}`)))
	assert.True(t, mr.Exists("test:users"))
	assert.False(t, mr.Exists("users"))
}

type fakeRecorder struct {
	ops []string
}

func (f *fakeRecorder) RecordStoreOp(op, collection, result string, _ time.Duration) {
	f.ops = append(f.ops, op+":"+collection+":"+result)
}

func TestInstrument_RecordsOperations(t *testing.T) {
	rec := &fakeRecorder{}
	s := Instrument(NewMemoryStore(), rec)
	ctx := context.Background()
	require.NoError(t, Save(ctx, s, KeyUsers, map[string]string{}))
	_, err := Load(ctx, s, KeyUsers, map[string]string{})
	require.NoError(t, err)
	require.NoError(t, Mutate(ctx, s, KeyUsers, func(m map[string]string) (map[string]string, error) { return m, nil }))
	assert.Equal(t, []string{"set:users:ok", "get:users:ok", "update:users:ok"}, rec.ops)
}

func TestInstrument_ScopedKeysShareCollection(t *testing.T) {
	rec := &fakeRecorder{}
	s := Instrument(NewMemoryStore(), rec)
	ctx := context.Background()
	for _, client := range []string{"a", "b", "c"} {
		_, _, err := s.Get(ctx, KeyCurrentUserID+":"+client)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{
		"get:current-user-id:ok",
		"get:current-user-id:ok",
		"get:current-user-id:ok",
	}, rec.ops)
}

func TestInstrument_UpdaterErrorIsAborted(t *testing.T) {
	errSkip := errors.New("skip")
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := &fakeRecorder{}
			s := Instrument(backend, rec)
			err := s.Update(context.Background(), KeyListings, func([]byte, bool) ([]byte, error) {
				return nil, errSkip
			})
			assert.ErrorIs(t, err, errSkip)
			assert.Equal(t, []string{"update:listings:aborted"}, rec.ops)
		})
	}
}

type failingStore struct {
	Store
}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Update(context.Context, string, UpdateFunc) error {
	return errors.New("connection refused")
}

func TestInstrument_BackendFailureIsError(t *testing.T) {
	rec := &fakeRecorder{}
	s := Instrument(failingStore{Store: NewMemoryStore()}, rec)
	ctx := context.Background()
	_, _, err := s.Get(ctx, KeyMessages)
	require.Error(t, err)
	require.Error(t, s.Update(ctx, KeyMessages, func(raw []byte, _ bool) ([]byte, error) { return raw, nil }))
	assert.Equal(t, []string{"get:messages:error", "update:messages:error"}, rec.ops)
}

func TestCollection(t *testing.T) {
	assert.Equal(t, KeyCurrentUserID, Collection(KeyCurrentUserID+":3f1c"))
	assert.Equal(t, KeyMessages, Collection(KeyMessages))
}

func TestObservesAllWrites(t *testing.T) {
	assert.True(t, ObservesAllWrites(NewMemoryStore()))
	assert.True(t, ObservesAllWrites(newRedisStore(t)))
	assert.False(t, ObservesAllWrites(newSQLStore(t)))
	assert.True(t, ObservesAllWrites(Instrument(NewMemoryStore(), &fakeRecorder{})))
	assert.False(t, ObservesAllWrites(Instrument(newSQLStore(t), &fakeRecorder{})))
}

type errorLogRecorder struct {
	logger.Interface
	mu     sync.Mutex
	errors []error
}

func (r *errorLogRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *errorLogRecorder) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err != nil {
		r.mu.Lock()
		r.errors = append(r.errors, err)
		r.mu.Unlock()
	}
}

func TestSQLStore_MissingKeyIsNotAQueryError(t *testing.T) {
	rec := &errorLogRecorder{Interface: logger.Discard}
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: rec})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	s := NewSQLStore(db, "")
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, found, err := s.Get(ctx, KeyCurrentUserID+":anonymous")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Update(ctx, KeyFavorites, func(_ []byte, found bool) ([]byte, error) {
		assert.False(t, found)
		return []byte(`[]`), nil
	}))
	assert.Empty(t, rec.errors)
}
