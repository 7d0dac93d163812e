package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/masthead-news/masthead/internal/config"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/store"
)

// RateLimitService enforces a fixed-window attempt cap per route and
// identifier, counting every attempt (successful or not) against the limit.
type RateLimitService struct {
	store  store.EphemeralStore
	config config.RateLimitConfig
	logger *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(st store.EphemeralStore, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  st,
		config: cfg,
		logger: logger,
	}
}

// Allow records one attempt for (route, identifier) and returns
// models.ErrRateLimited once the window's cap is exceeded. When the backing
// store is unreachable the configured policy decides: fail open keeps login
// available, fail closed returns the limit error.
func (s *RateLimitService) Allow(ctx context.Context, route, identifier string) error {
	key := rateLimitKey(route, identifier)

	count, err := s.store.Increment(ctx, key, s.config.Window)
	if err != nil {
		s.logger.Error("rate limit store unavailable",
			slog.String("route", route),
			slog.Any("error", err))
		if s.config.FailClosed {
			return models.ErrRateLimited
		}
		return nil
	}

	if count > int64(s.config.MaxPerIP) {
		s.logger.Warn("rate limit exceeded",
			slog.String("route", route),
			slog.Int64("count", count))
		return models.ErrRateLimited
	}

	return nil
}

func rateLimitKey(route, identifier string) string {
	return fmt.Sprintf("rl:%s:%s", route, identifier)
}

// Window exposes the configured window for Retry-After hints.
func (s *RateLimitService) Window() time.Duration {
	return s.config.Window
}
