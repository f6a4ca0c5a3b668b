package favorites

import (
	"context"
	"errors"
	"time"

	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/infrastructure/store"

	"github.com/rs/zerolog/log"
)

var ErrUnauthenticated = errors.New("Not authenticated")

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) all(ctx context.Context) ([]domain.Favorite, error) {
	return store.Load(ctx, s.store, store.KeyFavorites, []domain.Favorite{})
}

// Toggle flips the (userID, listingID) membership and reports whether the
// listing is a favorite afterwards. Calling it twice restores the prior state.
func (s *Service) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	if userID == "" {
		return false, ErrUnauthenticated
	}
	var favorited bool
	err := store.Mutate(ctx, s.store, store.KeyFavorites, func(favs []domain.Favorite) ([]domain.Favorite, error) {
		for i, f := range favs {
			if f.UserID == userID && f.ListingID == listingID {
				favorited = false
				return append(favs[:i:i], favs[i+1:]...), nil
			}
		}
		favorited = true
		return append(favs, domain.Favorite{
			UserID:    userID,
			ListingID: listingID,
			CreatedAt: s.now(),
		}), nil
	})
	if err != nil {
		return false, err
	}
	log.Debug().Str("user_id", userID).Str("listing_id", listingID).Bool("favorited", favorited).Msg("favorites: toggled")
	return favorited, nil
}

func (s *Service) IsFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ids, err := s.ListingIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := ids[listingID]
	return ok, nil
}

// ListFavorites returns userID's records in the order they were added.
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error) {
	favs, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Favorite, 0)
	for _, f := range favs {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

// ListingIDs is the set of listing ids userID has favorited.
func (s *Service) ListingIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	favs, err := s.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(favs))
	for _, f := range favs {
		ids[f.ListingID] = struct{}{}
	}
	return ids, nil
}
