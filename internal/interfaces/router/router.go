package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	favsvc "motorhub-backend/internal/application/favorites"
	"motorhub-backend/internal/application/identity"
	listsvc "motorhub-backend/internal/application/listings"
	"motorhub-backend/internal/application/messaging"
	"motorhub-backend/internal/config"
	"motorhub-backend/internal/infrastructure/database"
	"motorhub-backend/internal/infrastructure/store"
	authhandler "motorhub-backend/internal/interfaces/handlers/auth"
	favhandler "motorhub-backend/internal/interfaces/handlers/favorites"
	healthhandler "motorhub-backend/internal/interfaces/handlers/health"
	listhandler "motorhub-backend/internal/interfaces/handlers/listings"
	msghandler "motorhub-backend/internal/interfaces/handlers/messages"
	"motorhub-backend/internal/metrics"
	"motorhub-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// App is the wired HTTP application plus the resources it owns.
type App struct {
	Fiber *fiber.App
	Store store.Store

	cancel  context.CancelFunc
	limiter *middleware.RateLimiter
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.cancel()
	a.limiter.Stop()
	return a.Store.Close()
}

// OpenStore connects the backend selected by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("router: parse REDIS_URL: %w", err)
		}
		return store.NewRedisStore(redis.NewClient(opt), cfg.StoreNamespace), nil
	case config.BackendSQL:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("router: open database: %w", err)
		}
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return nil, fmt.Errorf("router: migrate: %w", err)
		}
		return store.NewSQLStore(db, cfg.StoreNamespace), nil
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("router: unknown store backend %q", cfg.StoreBackend)
	}
}

// CreateApp wires services and routes over s.
func CreateApp(cfg *config.Config, s store.Store) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)
	s = store.Instrument(s, collector)

	hasher, err := identity.NewHasher(cfg.CredentialScheme)
	if err != nil {
		return nil, err
	}
	ids := identity.NewService(s, hasher)
	listings := listsvc.NewService(s)
	favorites := favsvc.NewService(s)
	msgs := messaging.NewService(s, cfg.ConversationCache)

	ctx, cancel := context.WithCancel(context.Background())
	if msgs.Caching() {
		go func() {
			if err := msgs.Watch(ctx); err != nil {
				log.Error().Err(err).Msg("messaging: watch stopped")
			}
		}()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.RequestMetrics(collector))
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}, cfg.IsProduction()))

	hh := &healthhandler.Handlers{Backend: cfg.StoreBackend, Store: s, StartedAt: time.Now()}
	app.Get("/health/json", hh.JSON)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(reg)))

	api := app.Group("/api/v1",
		middleware.Session(middleware.SessionConfig{
			AllowCrossSiteDev: cfg.AllowCrossSiteDev,
			IsProduction:      cfg.IsProduction(),
		}),
		middleware.Authenticate(ids),
	)

	ah := &authhandler.Handlers{Identity: ids}
	authGroup := api.Group("/auth")
	authGroup.Post("/register", ah.Register)
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	lh := &listhandler.Handlers{Service: listings}
	lg := api.Group("/listings")
	lg.Get("/", lh.List)
	lg.Post("/", middleware.RequireAuth(), lh.Create)
	lg.Get("/mine", middleware.RequireAuth(), lh.Mine)
	lg.Get("/:id", lh.Get)
	lg.Patch("/:id", middleware.RequireAuth(), lh.Update)
	lg.Delete("/:id", middleware.RequireAuth(), lh.Delete)
	lg.Post("/:id/views", lh.IncrementViews)

	fh := &favhandler.Handlers{Service: favorites, Listings: listings}
	fg := api.Group("/favorites", middleware.RequireAuth())
	fg.Get("/", fh.List)
	fg.Post("/:listing_id/toggle", fh.Toggle)
	fg.Get("/:listing_id", fh.IsFavorite)

	limiter := middleware.NewRateLimiter(middleware.PerMinute("messages", cfg.MessageRatePerMinute), collector)
	var sendHandlers []fiber.Handler
	if cfg.MessageRatePerMinute > 0 {
		sendHandlers = append(sendHandlers, limiter.Handler())
	}
	mh := &msghandler.Handlers{Service: msgs, Listings: listings, Identity: ids}
	mg := api.Group("/messages", middleware.RequireAuth())
	mg.Post("/", append(sendHandlers, mh.Send)...)
	mg.Post("/read", mh.MarkAsRead)
	mg.Get("/conversations", mh.Conversations)
	mg.Get("/unread-count", mh.UnreadCount)
	mg.Get("/:listing_id/:user_id", mh.Thread)

	return &App{Fiber: app, Store: s, cancel: cancel, limiter: limiter}, nil
}

// Handler exposes the app as a net/http handler for serverless runtimes.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
