// Package handlertest builds Fiber apps over an in-memory store for handler
// tests.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"motorhub-backend/internal/application/identity"
	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/infrastructure/store"
	"motorhub-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Env struct {
	Store    store.Store
	Identity *identity.Service
	App      *fiber.App
}

// New returns an app with the session and authentication middleware
// installed. Routes are added by the caller.
func New(t *testing.T) *Env {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ids := identity.NewService(s, identity.PlaintextHasher{})

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Use(middleware.Session(middleware.SessionConfig{}))
	app.Use(middleware.Authenticate(ids))
	return &Env{Store: s, Identity: ids, App: app}
}

// SignUp registers a user on a fresh client and returns the client id and user.
func (e *Env) SignUp(t *testing.T, email string) (string, *domain.User) {
	t.Helper()
	client := uuid.NewString()
	user, err := e.Identity.ForClient(client).Register(context.Background(), email, "secret1", email)
	require.NoError(t, err)
	return client, user
}

// Response is a decoded envelope.
type Response struct {
	Code int
	Body map[string]interface{}
}

func (r Response) Data() interface{} { return r.Body["data"] }

func (r Response) DataMap(t *testing.T) map[string]interface{} {
	t.Helper()
	m, ok := r.Body["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", r.Body)
	return m
}

func (r Response) DataList(t *testing.T) []interface{} {
	t.Helper()
	l, ok := r.Body["data"].([]interface{})
	require.True(t, ok, "data is not a list: %v", r.Body)
	return l
}

func (e *Env) Do(t *testing.T, method, path, clientID string, body interface{}) Response {
	t.Helper()
	return Do(t, e.App, method, path, clientID, body)
}

// Do sends a JSON request carrying clientID as the session cookie.
func Do(t *testing.T, app *fiber.App, method, path, clientID string, body interface{}) Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set("Cookie", middleware.SessionCookieName+"="+clientID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	out := Response{Code: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}
