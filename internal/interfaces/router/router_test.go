package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"motorhub-backend/internal/config"
	"motorhub-backend/internal/infrastructure/store"
	"motorhub-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		StoreBackend:         config.BackendMemory,
		StoreNamespace:       "test:",
		CredentialScheme:     "plaintext",
		MessageRatePerMinute: 2,
		ConversationCache:    true,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	s, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	app, err := CreateApp(cfg, s)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

type client struct {
	t      *testing.T
	app    *fiber.App
	cookie string
}

func (c *client) do(method, path string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", middleware.SessionCookieName+"="+c.cookie)
	}
	resp, err := c.app.Test(req)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			c.cookie = ck.Value
		}
	}
	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func data(body map[string]interface{}) map[string]interface{} {
	m, _ := body["data"].(map[string]interface{})
	return m
}

func TestOpenStore_Backends(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig()
	cfg.StoreBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	s, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), store.KeyUsers, []byte(`{}`)))
	assert.True(t, mr.Exists("test:users"))
	s.Close()

	cfg.StoreBackend = "etcd"
	_, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestMarketplaceScenario(t *testing.T) {
	app := newTestApp(t, testConfig())
	seller := &client{t: t, app: app.Fiber}
	buyer := &client{t: t, app: app.Fiber}

	code, body := seller.do("POST", "/api/v1/auth/register", map[string]string{"email": "b@example.com", "password": "secret1", "name": "B"})
	require.Equal(t, fiber.StatusCreated, code, body)
	sellerID := data(body)["user"].(map[string]interface{})["id"].(string)
	code, body = buyer.do("POST", "/api/v1/auth/register", map[string]string{"email": "a@example.com", "password": "secret1", "name": "A"})
	require.Equal(t, fiber.StatusCreated, code, body)
	buyerID := data(body)["user"].(map[string]interface{})["id"].(string)

	code, body = seller.do("POST", "/api/v1/listings", map[string]interface{}{
		"category": "cars", "status": "active", "title": "Fiesta", "price": 4500,
	})
	require.Equal(t, fiber.StatusCreated, code, body)
	listingID := data(body)["id"].(string)

	code, _ = buyer.do("POST", "/api/v1/listings/"+listingID+"/views", nil)
	require.Equal(t, fiber.StatusOK, code)

	code, body = buyer.do("POST", "/api/v1/favorites/"+listingID+"/toggle", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, data(body)["isFavorite"])

	code, body = buyer.do("POST", "/api/v1/messages", map[string]string{
		"listingId": listingID, "receiverId": sellerID, "content": "Is this still available?",
	})
	require.Equal(t, fiber.StatusCreated, code, body)
	msgID := data(body)["id"].(string)

	code, body = seller.do("GET", "/api/v1/messages/unread-count", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, data(body)["unreadCount"])

	code, _ = seller.do("POST", "/api/v1/messages/read", map[string]interface{}{"ids": []string{msgID}})
	require.Equal(t, fiber.StatusOK, code)
	code, body = seller.do("GET", "/api/v1/messages/unread-count", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 0, data(body)["unreadCount"])

	code, body = seller.do("GET", "/api/v1/listings/"+listingID, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, data(body)["views"])

	code, _ = buyer.do("DELETE", "/api/v1/auth/logout", nil)
	require.Equal(t, fiber.StatusOK, code)
	code, _ = buyer.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = buyer.do("POST", "/api/v1/auth/login", map[string]string{"email": "a@example.com", "password": "secret1"})
	require.Equal(t, fiber.StatusOK, code)
	code, body = buyer.do("GET", "/api/v1/auth/me", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, buyerID, data(body)["user"].(map[string]interface{})["id"])
}

func TestMessageSendIsRateLimited(t *testing.T) {
	app := newTestApp(t, testConfig())
	seller := &client{t: t, app: app.Fiber}
	buyer := &client{t: t, app: app.Fiber}

	_, body := seller.do("POST", "/api/v1/auth/register", map[string]string{"email": "b@example.com", "password": "secret1", "name": "B"})
	sellerID := data(body)["user"].(map[string]interface{})["id"].(string)
	buyer.do("POST", "/api/v1/auth/register", map[string]string{"email": "a@example.com", "password": "secret1", "name": "A"})
	_, body = seller.do("POST", "/api/v1/listings", map[string]interface{}{"category": "cars", "title": "Ka"})
	listingID := data(body)["id"].(string)

	send := map[string]string{"listingId": listingID, "receiverId": sellerID, "content": "hello"}
	for i := 0; i < 2; i++ {
		code, _ := buyer.do("POST", "/api/v1/messages", send)
		require.Equal(t, fiber.StatusCreated, code)
	}
	code, _ := buyer.do("POST", "/api/v1/messages", send)
	assert.Equal(t, fiber.StatusTooManyRequests, code)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, testConfig())

	resp, err := app.Fiber.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = app.Fiber.Test(httptest.NewRequest("GET", "/api/v1/listings", nil))
	require.NoError(t, err)

	resp, err = app.Fiber.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "motorhub_http_requests_total")
	assert.Contains(t, string(raw), `motorhub_store_operations_total{collection="listings",op="get",result="ok"}`)
}

func TestMetrics_SessionKeysShareOneSeries(t *testing.T) {
	app := newTestApp(t, testConfig())

	for i := 0; i < 50; i++ {
		resp, err := app.Fiber.Test(httptest.NewRequest("GET", "/api/v1/listings", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Fiber.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, `collection="current-user-id:`)
	assert.Equal(t, 1, strings.Count(body, `motorhub_store_operations_total{collection="current-user-id"`))
	assert.Contains(t, body, `motorhub_store_operations_total{collection="current-user-id",op="get",result="ok"} 50`)
}
