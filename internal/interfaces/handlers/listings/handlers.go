package listings

import (
	"errors"

	listsvc "motorhub-backend/internal/application/listings"
	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/middleware"
	"motorhub-backend/internal/pkg/response"
	"motorhub-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *listsvc.Service
}

func internalError(c *fiber.Ctx, op string, err error) error {
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("listings/" + op + ": failed")
	return response.Internal(c)
}

// GET /api/v1/listings — filters: status, category, user_id. Newest first.
func (h *Handlers) List(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && !validation.IsValidStatus(status) {
		return response.Error(c, "Invalid status filter", fiber.StatusBadRequest, nil)
	}
	listings, err := h.Service.List(c.UserContext(), listsvc.ListingFilter{
		UserID:   c.Query("user_id"),
		Status:   status,
		Category: c.Query("category"),
	})
	if err != nil {
		return internalError(c, "list", err)
	}
	return response.Success(c, "Listings fetched successfully", listings, fiber.Map{"count": len(listings)})
}

// POST /api/v1/listings — the listing is owned by the signed-in user.
func (h *Handlers) Create(c *fiber.Ctx) error {
	var in domain.ListingInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	in.UserID = middleware.GetUserID(c)
	if errs := validation.ListingInput(in); !errs.Empty() {
		return response.Invalid(c, errs)
	}
	listing, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return internalError(c, "create", err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/listings/mine
func (h *Handlers) Mine(c *fiber.Ctx) error {
	listings, err := h.Service.GetByUser(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return internalError(c, "mine", err)
	}
	return response.Success(c, "Listings fetched successfully", listings, fiber.Map{"count": len(listings)})
}

// GET /api/v1/listings/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	listing, err := h.Service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return internalError(c, "get", err)
	}
	if listing == nil {
		return response.NotFound(c, listsvc.ErrListingNotFound.Error())
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// owned loads the listing and checks the signed-in user owns it. It writes the
// error response itself and returns nil when the caller should stop.
func (h *Handlers) owned(c *fiber.Ctx) (*domain.Listing, error) {
	listing, err := h.Service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, internalError(c, "owned", err)
	}
	if listing == nil {
		return nil, response.NotFound(c, listsvc.ErrListingNotFound.Error())
	}
	if listing.UserID != middleware.GetUserID(c) {
		return nil, response.Forbidden(c)
	}
	return listing, nil
}

// PATCH /api/v1/listings/:id — owner only.
func (h *Handlers) Update(c *fiber.Ctx) error {
	listing, err := h.owned(c)
	if listing == nil {
		return err
	}
	var patch domain.ListingPatch
	if err := c.BodyParser(&patch); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if errs := validation.ListingPatch(patch); !errs.Empty() {
		return response.Invalid(c, errs)
	}
	updated, err := h.Service.Update(c.UserContext(), listing.ID, patch)
	if errors.Is(err, listsvc.ErrListingNotFound) {
		return response.NotFound(c, err.Error())
	}
	if err != nil {
		return internalError(c, "update", err)
	}
	return response.Success(c, "Listing updated successfully", updated, nil)
}

// DELETE /api/v1/listings/:id — owner only.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	listing, err := h.owned(c)
	if listing == nil {
		return err
	}
	if err := h.Service.Delete(c.UserContext(), listing.ID); err != nil {
		return internalError(c, "delete", err)
	}
	return response.Success(c, "Listing deleted successfully", fiber.Map{"id": listing.ID}, nil)
}

// POST /api/v1/listings/:id/views
func (h *Handlers) IncrementViews(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.Service.IncrementViews(c.UserContext(), id)
	if errors.Is(err, listsvc.ErrListingNotFound) {
		return response.NotFound(c, err.Error())
	}
	if err != nil {
		return internalError(c, "views", err)
	}
	listing, err := h.Service.GetByID(c.UserContext(), id)
	if err != nil {
		return internalError(c, "views", err)
	}
	views := 0
	if listing != nil {
		views = listing.Views
	}
	return response.Success(c, "View recorded", fiber.Map{"id": id, "views": views}, nil)
}
