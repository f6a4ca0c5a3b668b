// Package store is the durable key-value layer every service is built on.
// Each logical collection lives under one key as a JSON document; writes either
// replace the document or apply an updater that sees the latest value.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Keys owned by the services. No two services write the same key.
const (
	KeyCurrentUserID = "current-user-id"
	KeyUsers         = "users"
	KeyUserPasswords = "user-passwords"
	KeyListings      = "listings"
	KeyFavorites     = "favorites"
	KeyMessages      = "messages"
)

var (
	ErrConflict = errors.New("store: too many concurrent updates")
	ErrClosed   = errors.New("store: closed")
)

// UpdateFunc computes the next value of a key from its current value. found is
// false when the key has never been written. Returning an error abandons the
// write. The function may be invoked more than once when a backend retries, so
// it must not have side effects beyond its return values.
type UpdateFunc func(raw []byte, found bool) ([]byte, error)

// Change is emitted after every successful write to Key.
type Change struct {
	Key string
}

// Store is the contract the services depend on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, raw []byte) error
	// Update applies fn atomically with respect to other writers of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Subscribe streams changes until ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Change, error)
	Ping(ctx context.Context) error
	Close() error
}

type sharedFeed interface {
	SharedFeed() bool
}

// ObservesAllWrites reports whether Subscribe on s sees every write to the
// data behind s, including writes made through other handles or processes.
// Caches fed by Subscribe are only coherent when it does.
func ObservesAllWrites(s Store) bool {
	f, ok := s.(sharedFeed)
	return ok && f.SharedFeed()
}

// Collection maps a key to the collection it belongs to: scoped keys such as
// "current-user-id:<client>" collapse to their prefix.
func Collection(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Load decodes the value under key, returning def when the key is absent.
func Load[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("store: get %s: %w", key, err)
	}
	if !found {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return v, nil
}

// Save encodes v and replaces the value under key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// Mutate runs fn as an updater over the decoded value of key. fn receives the
// zero value of T when the key is absent (nil for maps and slices). Errors
// returned by fn are passed through unwrapped so callers can match sentinels.
func Mutate[T any](ctx context.Context, s Store, key string, fn func(T) (T, error)) error {
	var fnErr error
	err := s.Update(ctx, key, func(raw []byte, found bool) ([]byte, error) {
		var cur T
		if found {
			if err := json.Unmarshal(raw, &cur); err != nil {
				return nil, fmt.Errorf("store: decode %s: %w", key, err)
			}
		}
		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return nil, err
		}
		return json.Marshal(next)
	})
	if err != nil {
		if fnErr != nil && errors.Is(err, fnErr) {
			return fnErr
		}
		return fmt.Errorf("store: update %s: %w", key, err)
	}
	return nil
}
