package handler

import (
	"context"
	"net/http"

	"motorhub-backend/bootstrap"
	"motorhub-backend/internal/config"
	"motorhub-backend/internal/interfaces/router"
)

var httpHandler http.Handler

// Serverless instances are frozen between requests, so a background change
// subscription cannot keep a conversation cache fresh.
func withoutConversationCache(cfg *config.Config) {
	cfg.ConversationCache = false
}

func init() {
	_, app, err := bootstrap.New(context.Background(), withoutConversationCache)
	if err != nil {
		panic("app create: " + err.Error())
	}
	httpHandler = router.Handler(app.Fiber)
}

// Handler is the serverless entry point. All requests are rewritten here.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()
	httpHandler.ServeHTTP(w, r)
}
