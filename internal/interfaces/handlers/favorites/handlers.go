package favorites

import (
	"errors"

	favsvc "motorhub-backend/internal/application/favorites"
	listsvc "motorhub-backend/internal/application/listings"
	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/middleware"
	"motorhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service  *favsvc.Service
	Listings *listsvc.Service
}

func internalError(c *fiber.Ctx, op string, err error) error {
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("favorites/" + op + ": failed")
	return response.Internal(c)
}

// GET /api/v1/favorites — the user's favorites with the listings they point
// at. Listings deleted since are reported with a null listing.
func (h *Handlers) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	favs, err := h.Service.ListFavorites(ctx, middleware.GetUserID(c))
	if err != nil {
		return internalError(c, "list", err)
	}
	ids := make([]string, len(favs))
	for i, f := range favs {
		ids[i] = f.ListingID
	}
	listings, err := h.Listings.GetByIDs(ctx, ids)
	if err != nil {
		return internalError(c, "list", err)
	}
	out := make([]fiber.Map, 0, len(favs))
	for _, f := range favs {
		var listing *domain.Listing
		if l, ok := listings[f.ListingID]; ok {
			listing = &l
		}
		out = append(out, fiber.Map{
			"listingId": f.ListingID,
			"createdAt": f.CreatedAt,
			"listing":   listing,
		})
	}
	return response.Success(c, "Favorites fetched successfully", out, fiber.Map{"count": len(out)})
}

// POST /api/v1/favorites/:listing_id/toggle
func (h *Handlers) Toggle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	listingID := c.Params("listing_id")
	listing, err := h.Listings.GetByID(ctx, listingID)
	if err != nil {
		return internalError(c, "toggle", err)
	}
	if listing == nil {
		return response.NotFound(c, listsvc.ErrListingNotFound.Error())
	}
	favorited, err := h.Service.Toggle(ctx, middleware.GetUserID(c), listingID)
	if errors.Is(err, favsvc.ErrUnauthenticated) {
		return response.Unauthorized(c, err.Error())
	}
	if err != nil {
		return internalError(c, "toggle", err)
	}
	return response.Success(c, "Favorite toggled", fiber.Map{"listingId": listingID, "isFavorite": favorited}, nil)
}

// GET /api/v1/favorites/:listing_id
func (h *Handlers) IsFavorite(c *fiber.Ctx) error {
	listingID := c.Params("listing_id")
	fav, err := h.Service.IsFavorite(c.UserContext(), middleware.GetUserID(c), listingID)
	if err != nil {
		return internalError(c, "is-favorite", err)
	}
	return response.Success(c, "Favorite status fetched", fiber.Map{"listingId": listingID, "isFavorite": fav}, nil)
}
