// Package listings owns the "listings" key. Every mutation is one updater over
// the whole collection, so concurrent writes to the same listing are
// last-writer-wins at collection granularity.
package listings

import (
	"context"
	"errors"
	"sort"
	"time"

	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type collection = map[string]domain.Listing

type Service struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

func NewService(s store.Store) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// ListingFilter narrows List. Empty fields match everything.
type ListingFilter struct {
	UserID   string
	Status   string
	Category string
}

func (f ListingFilter) match(l domain.Listing) bool {
	return (f.UserID == "" || l.UserID == f.UserID) &&
		(f.Status == "" || l.Status == f.Status) &&
		(f.Category == "" || l.Category == f.Category)
}

func (s *Service) all(ctx context.Context) (collection, error) {
	return store.Load(ctx, s.store, store.KeyListings, collection{})
}

func (s *Service) mutate(ctx context.Context, fn func(collection) (collection, error)) error {
	return store.Mutate(ctx, s.store, store.KeyListings, func(c collection) (collection, error) {
		if c == nil {
			c = collection{}
		}
		return fn(c)
	})
}

// Create stores a new listing with a fresh id, zero views and both timestamps
// set to now.
func (s *Service) Create(ctx context.Context, in domain.ListingInput) (*domain.Listing, error) {
	now := s.now()
	listing := domain.Listing{
		ID:                s.newID(),
		UserID:            in.UserID,
		Category:          in.Category,
		Status:            in.Status,
		Title:             in.Title,
		Description:       in.Description,
		Price:             in.Price,
		Location:          in.Location,
		Images:            append([]string{}, in.Images...),
		CreatedAt:         now,
		UpdatedAt:         now,
		Views:             0,
		VehicleAttributes: in.VehicleAttributes,
	}
	if listing.Status == "" {
		listing.Status = domain.StatusDraft
	}
	if err := s.mutate(ctx, func(c collection) (collection, error) {
		c[listing.ID] = listing
		return c, nil
	}); err != nil {
		return nil, err
	}
	log.Debug().Str("listing_id", listing.ID).Str("user_id", listing.UserID).Msg("listings: created")
	return &listing, nil
}

// Update merges patch over the stored listing and bumps UpdatedAt.
func (s *Service) Update(ctx context.Context, id string, patch domain.ListingPatch) (*domain.Listing, error) {
	var updated domain.Listing
	err := s.mutate(ctx, func(c collection) (collection, error) {
		l, ok := c[id]
		if !ok {
			return nil, ErrListingNotFound
		}
		patch.Apply(&l)
		l.UpdatedAt = s.now()
		if l.UpdatedAt.Before(l.CreatedAt) {
			l.UpdatedAt = l.CreatedAt
		}
		c[id] = l
		updated = l
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the listing. Deleting an absent id is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(c collection) (collection, error) {
		if _, ok := c[id]; !ok {
			return nil, ErrListingNotFound
		}
		delete(c, id)
		return c, nil
	})
	if errors.Is(err, ErrListingNotFound) {
		return nil
	}
	return err
}

// IncrementViews adds one view. UpdatedAt is left alone: a view is not an edit.
func (s *Service) IncrementViews(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c collection) (collection, error) {
		l, ok := c[id]
		if !ok {
			return nil, ErrListingNotFound
		}
		l.Views++
		c[id] = l
		return c, nil
	})
}

// GetByID returns the listing or nil.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	c, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	l, ok := c[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// GetByIDs returns the listings among ids that exist, keyed by id, from a
// single read of the collection.
func (s *Service) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Listing, error) {
	c, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Listing, len(ids))
	for _, id := range ids {
		if l, ok := c[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

// GetByUser returns the listings owned by userID, oldest first. Callers that
// need another order sort the result themselves.
func (s *Service) GetByUser(ctx context.Context, userID string) ([]domain.Listing, error) {
	c, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := filter(c, ListingFilter{UserID: userID})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// List returns the listings matching f, newest first.
func (s *Service) List(ctx context.Context, f ListingFilter) ([]domain.Listing, error) {
	c, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := filter(c, f)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func filter(c collection, f ListingFilter) []domain.Listing {
	out := make([]domain.Listing, 0, len(c))
	for _, l := range c {
		if f.match(l) {
			out = append(out, l)
		}
	}
	return out
}
