package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/config"
	"github.com/daygraph/daygraph/internal/remote"
)

// openBackend connects to the configured remote store.
func openBackend() (remote.Store, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.RemoteStore {
	case "redis":
		s, err := remote.NewRedisStore(cfg.RedisURL, zap.NewNop())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return s, s.Close, nil
	case "postgres":
		s, err := remote.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote store backend %q", cfg.RemoteStore)
	}
}
