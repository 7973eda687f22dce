// Package service assembles caches and lookup loaders from configuration.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/weather-lookup-service/internal/cache"
	"github.com/couchcryptid/weather-lookup-service/internal/config"
	"github.com/couchcryptid/weather-lookup-service/internal/domain"
	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

// OpenCache builds the configured cache backend. The returned closer releases
// any connection it holds.
func OpenCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis, config.CacheTiered:
		r, err := cache.NewRedis(ctx, cache.RedisConfig{URL: cfg.RedisURL}, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.CacheBackend == config.CacheTiered {
			return cache.NewTiered(r, cfg.CacheSize, cfg.CacheTTL), r, nil
		}
		return r, r, nil
	default:
		return cache.NewMemory(cfg.CacheTTL), nopCloser{}, nil
	}
}

// NewRegistry creates a loader for each entity sharing c.
func NewRegistry(cfg *config.Config, entities []domain.Entity, c cache.Cache, logger *slog.Logger, obs domain.Observer) (*domain.Registry, error) {
	sanitizer, err := lookup.NewSanitizer(cfg.Charset)
	if err != nil {
		return nil, fmt.Errorf("lookup charset: %w", err)
	}
	loaders := make([]*domain.Loader, 0, len(entities))
	for _, e := range entities {
		loaders = append(loaders, domain.NewLoader(e, c, logger,
			domain.WithTTL(cfg.CacheTTL),
			domain.WithSanitizer(sanitizer),
			domain.WithLocation(cfg.Location),
			domain.WithObserver(obs),
		))
	}
	return domain.NewRegistry(loaders...)
}

// Readiness is ready when every checker is. Checkers run in order and the
// first failure is reported.
type Readiness []sharedobs.ReadinessChecker

func (rs Readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range rs {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
