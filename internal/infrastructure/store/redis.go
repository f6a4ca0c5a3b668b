package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNamespace   = "motorhub:"
	defaultMaxAttempts = 16
	changesChannel     = "changes"
)

// RedisStore keeps each key as a string value under a namespace prefix.
// Updaters run inside WATCH/MULTI so concurrent writers to the same key are
// serialized; a lost race is retried against the fresh value.
type RedisStore struct {
	rdb         *redis.Client
	namespace   string
	maxAttempts int
}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{rdb: rdb, namespace: namespace, maxAttempts: defaultMaxAttempts}
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

func (s *RedisStore) channel() string {
	return s.namespace + changesChannel
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, raw []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(key), raw, 0)
		pipe.Publish(ctx, s.channel(), key)
		return nil
	})
	return err
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		found := true
		if errors.Is(err, redis.Nil) {
			found = false
		} else if err != nil {
			return err
		}
		next, err := fn(cur, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			pipe.Publish(ctx, s.channel(), key)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Debug().Str("key", key).Int("attempt", attempt).Msg("store: optimistic update lost race, retrying")
	}
	return ErrConflict
}

func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	pubsub := s.rdb.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	in := pubsub.Channel()
	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Change{Key: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// SharedFeed is true: every writer publishes on the same channel.
func (s *RedisStore) SharedFeed() bool { return true }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
