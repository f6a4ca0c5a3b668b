package favorites

import (
	"context"
	"sync"
	"testing"
	"time"

	"motorhub-backend/internal/infrastructure/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFavorites(t *testing.T) (*Service, store.Store) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	svc := NewService(s)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return svc, s
}

func TestToggle_AddsThenRemoves(t *testing.T) {
	svc, _ := setupFavorites(t)
	ctx := context.Background()

	on, err := svc.Toggle(ctx, "u1", "L1")
	require.NoError(t, err)
	assert.True(t, on)

	fav, err := svc.IsFavorite(ctx, "u1", "L1")
	require.NoError(t, err)
	assert.True(t, fav)

	list, err := svc.ListFavorites(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "L1", list[0].ListingID)
	assert.False(t, list[0].CreatedAt.IsZero())

	off, err := svc.Toggle(ctx, "u1", "L1")
	require.NoError(t, err)
	assert.False(t, off)

	fav, err = svc.IsFavorite(ctx, "u1", "L1")
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestToggle_TwiceRestoresIndex(t *testing.T) {
	svc, s := setupFavorites(t)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "u1", "L1")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "u2", "L1")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "u1", "L2")
	require.NoError(t, err)

	pairs := [][2]string{{"u1", "L1"}, {"u1", "L3"}, {"u2", "L2"}, {"u3", "L1"}}
	for _, p := range pairs {
		before, _, err := s.Get(ctx, store.KeyFavorites)
		require.NoError(t, err)
		wasFav, err := svc.IsFavorite(ctx, p[0], p[1])
		require.NoError(t, err)

		_, err = svc.Toggle(ctx, p[0], p[1])
		require.NoError(t, err)
		_, err = svc.Toggle(ctx, p[0], p[1])
		require.NoError(t, err)

		isFav, err := svc.IsFavorite(ctx, p[0], p[1])
		require.NoError(t, err)
		assert.Equal(t, wasFav, isFav, "pair %v", p)

		after, _, err := s.Get(ctx, store.KeyFavorites)
		require.NoError(t, err)
		if wasFav {
			// The record is re-appended at the end, so only membership is stable.
			ids, err := svc.ListingIDs(ctx, p[0])
			require.NoError(t, err)
			assert.Contains(t, ids, p[1])
		} else {
			assert.JSONEq(t, string(before), string(after), "pair %v", p)
		}
	}
}

func TestToggle_WithoutUserIsNoop(t *testing.T) {
	svc, s := setupFavorites(t)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "", "L1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, found, err := s.Get(ctx, store.KeyFavorites)
	require.NoError(t, err)
	assert.False(t, found)

	fav, err := svc.IsFavorite(ctx, "", "L1")
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestListFavorites_ScopedToUser(t *testing.T) {
	svc, _ := setupFavorites(t)
	ctx := context.Background()

	for _, p := range [][2]string{{"u1", "L1"}, {"u2", "L1"}, {"u1", "L2"}} {
		_, err := svc.Toggle(ctx, p[0], p[1])
		require.NoError(t, err)
	}

	list, err := svc.ListFavorites(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "L1", list[0].ListingID)
	assert.Equal(t, "L2", list[1].ListingID)

	ids, err := svc.ListingIDs(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"L1": {}}, ids)

	empty, err := svc.ListFavorites(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestToggle_ConcurrentUsersAllRecorded(t *testing.T) {
	svc, _ := setupFavorites(t)
	ctx := context.Background()

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_, err := svc.Toggle(ctx, u, "L1")
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		fav, err := svc.IsFavorite(ctx, u, "L1")
		require.NoError(t, err)
		assert.True(t, fav, u)
	}
}
