package bootstrap

import (
	"context"

	"motorhub-backend/internal/config"
	"motorhub-backend/internal/interfaces/router"
)

// New loads configuration, opens the configured store and builds the app.
// Both the long-running server and the serverless handler start here;
// overrides adjust the loaded configuration for the entry point.
func New(ctx context.Context, overrides ...func(*config.Config)) (*config.Config, *router.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	cfg.SetupLogging()

	s, err := router.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	app, err := router.CreateApp(cfg, s)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return cfg, app, nil
}
