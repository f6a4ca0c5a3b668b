package auth

import (
	"errors"
	"strings"

	"motorhub-backend/internal/application/identity"
	"motorhub-backend/internal/middleware"
	"motorhub-backend/internal/pkg/response"
	"motorhub-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Identity *identity.Service
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// session returns the identity view bound to the requesting client.
func (h *Handlers) session(c *fiber.Ctx) (*identity.Service, bool) {
	clientID := middleware.GetClientID(c)
	if clientID == "" {
		return nil, false
	}
	return h.Identity.ForClient(clientID), true
}

// Register POST /api/v1/auth/register — create the account and sign the client in.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Email, password and name are required", fiber.StatusBadRequest, nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	details := validation.FieldErrors{}
	if !validation.IsValidEmail(req.Email) {
		details["email"] = "is invalid"
	}
	if !validation.IsValidPassword(req.Password) {
		details["password"] = "must be at least 6 characters"
	}
	if !validation.IsValidName(req.Name) {
		details["name"] = "is required"
	}
	if !details.Empty() {
		return response.Invalid(c, details)
	}

	svc, ok := h.session(c)
	if !ok {
		return response.Error(c, "Missing client session", fiber.StatusBadRequest, nil)
	}
	user, err := svc.Register(c.UserContext(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if errors.Is(err, identity.ErrEmailTaken) {
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	}
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("auth/register: failed")
		return response.Internal(c)
	}
	return response.SuccessCreated(c, "Registration successful", fiber.Map{"user": user}, nil)
}

// Login POST /api/v1/auth/login — point the client's session at the matching user.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Email and password are required", fiber.StatusBadRequest, nil)
	}
	if req.Email == "" || req.Password == "" {
		return response.Error(c, "Email and password are required", fiber.StatusBadRequest, nil)
	}

	svc, ok := h.session(c)
	if !ok {
		return response.Error(c, "Missing client session", fiber.StatusBadRequest, nil)
	}
	ctx := c.UserContext()
	okLogin, err := svc.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("auth/login: failed")
		return response.Internal(c)
	}
	if !okLogin {
		log.Info().Str("path", "/auth/login").Msg("auth/login: rejected credentials")
		return response.Error(c, "Invalid email or password", fiber.StatusUnauthorized, nil)
	}
	user, err := svc.CurrentUser(ctx)
	if err != nil || user == nil {
		return response.Internal(c)
	}
	return response.Success(c, "Login successful", fiber.Map{"user": user}, nil)
}

// Me GET /api/v1/auth/me — return the signed-in user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		log.Debug().Str("path", "/auth/me").Bool("client_id_present", middleware.GetClientID(c) != "").
			Msg("auth/me: returning 401 Not authenticated")
		return response.Error(c, identity.ErrNotAuthenticated.Error(), fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout — clear the client's session pointer.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	svc, ok := h.session(c)
	if !ok {
		return response.Success(c, "Logout successful", nil, nil)
	}
	if err := svc.Logout(c.UserContext()); err != nil {
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("auth/logout: failed")
		return response.Internal(c)
	}
	return response.Success(c, "Logout successful", nil, nil)
}
