package messages

import (
	"errors"
	"strings"

	"motorhub-backend/internal/application/identity"
	listsvc "motorhub-backend/internal/application/listings"
	"motorhub-backend/internal/application/messaging"
	"motorhub-backend/internal/middleware"
	"motorhub-backend/internal/pkg/response"
	"motorhub-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service  *messaging.Service
	Listings *listsvc.Service
	Identity *identity.Service
}

type SendRequest struct {
	ListingID  string `json:"listingId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

type ReadRequest struct {
	IDs []string `json:"ids"`
}

func internalError(c *fiber.Ctx, op string, err error) error {
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("messages/" + op + ": failed")
	return response.Internal(c)
}

// POST /api/v1/messages
func (h *Handlers) Send(c *fiber.Ctx) error {
	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	userID := middleware.GetUserID(c)
	details := validation.FieldErrors{}
	if req.ListingID == "" {
		details["listingId"] = "is required"
	}
	if req.ReceiverID == "" {
		details["receiverId"] = "is required"
	} else if req.ReceiverID == userID {
		details["receiverId"] = "must differ from the sender"
	}
	if !validation.MessageContent(req.Content) {
		details["content"] = "must be non-empty and at most 4000 characters"
	}
	if !details.Empty() {
		return response.Invalid(c, details)
	}

	ctx := c.UserContext()
	listing, err := h.Listings.GetByID(ctx, req.ListingID)
	if err != nil {
		return internalError(c, "send", err)
	}
	if listing == nil {
		return response.NotFound(c, listsvc.ErrListingNotFound.Error())
	}
	receiver, err := h.Identity.UserByID(ctx, req.ReceiverID)
	if err != nil {
		return internalError(c, "send", err)
	}
	if receiver == nil {
		return response.NotFound(c, "Receiver not found")
	}

	msg, err := h.Service.Send(ctx, userID, req.ListingID, req.ReceiverID, strings.TrimSpace(req.Content))
	if errors.Is(err, messaging.ErrUnauthenticated) {
		return response.Unauthorized(c, err.Error())
	}
	if err != nil {
		return internalError(c, "send", err)
	}
	return response.SuccessCreated(c, "Message sent", msg, nil)
}

// POST /api/v1/messages/read — only messages addressed to the signed-in user
// are marked; other ids are ignored.
func (h *Handlers) MarkAsRead(c *fiber.Ctx) error {
	var req ReadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ctx := c.UserContext()
	userID := middleware.GetUserID(c)
	mine, err := h.Service.UserMessages(ctx, userID)
	if err != nil {
		return internalError(c, "read", err)
	}
	want := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		want[id] = struct{}{}
	}
	ids := make([]string, 0, len(req.IDs))
	for _, m := range mine {
		if _, ok := want[m.ID]; ok && m.ReceiverID == userID {
			ids = append(ids, m.ID)
		}
	}
	if err := h.Service.MarkAsRead(ctx, ids); err != nil {
		return internalError(c, "read", err)
	}
	return response.Success(c, "Messages marked as read", fiber.Map{"ids": ids}, nil)
}

// GET /api/v1/messages/conversations
func (h *Handlers) Conversations(c *fiber.Ctx) error {
	convs, err := h.Service.Conversations(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return internalError(c, "conversations", err)
	}
	return response.Success(c, "Conversations fetched successfully", convs, fiber.Map{"count": len(convs)})
}

// GET /api/v1/messages/unread-count
func (h *Handlers) UnreadCount(c *fiber.Ctx) error {
	n, err := h.Service.UnreadCount(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return internalError(c, "unread-count", err)
	}
	return response.Success(c, "Unread count fetched", fiber.Map{"unreadCount": n}, nil)
}

// GET /api/v1/messages/:listing_id/:user_id — oldest first.
func (h *Handlers) Thread(c *fiber.Ctx) error {
	msgs, err := h.Service.ConversationMessages(c.UserContext(), middleware.GetUserID(c), c.Params("listing_id"), c.Params("user_id"))
	if err != nil {
		return internalError(c, "thread", err)
	}
	return response.Success(c, "Messages fetched successfully", msgs, fiber.Map{"count": len(msgs)})
}
