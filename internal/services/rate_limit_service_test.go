package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masthead-news/masthead/internal/config"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/store"
)

// failingStore simulates an unreachable backing store
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (f *failingStore) Get(ctx context.Context, key string) (string, error) { return "", errStoreDown }
func (f *failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errStoreDown
}
func (f *failingStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, errStoreDown
}
func (f *failingStore) Delete(ctx context.Context, key string) error { return errStoreDown }
func (f *failingStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errStoreDown
}

func TestRateLimitService_AllowsUpToCap(t *testing.T) {
	svc := NewRateLimitService(store.NewMemoryStore(), config.RateLimitConfig{
		Window:   time.Minute,
		MaxPerIP: 3,
	}, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Allow(ctx, "login", "198.51.100.1"))
	}
	assert.ErrorIs(t, svc.Allow(ctx, "login", "198.51.100.1"), models.ErrRateLimited)
}

func TestRateLimitService_RoutesAndIdentifiersIsolated(t *testing.T) {
	svc := NewRateLimitService(store.NewMemoryStore(), config.RateLimitConfig{
		Window:   time.Minute,
		MaxPerIP: 1,
	}, discardLogger())
	ctx := context.Background()

	require.NoError(t, svc.Allow(ctx, "login", "198.51.100.1"))
	assert.ErrorIs(t, svc.Allow(ctx, "login", "198.51.100.1"), models.ErrRateLimited)

	// Different route, same IP: separate window.
	assert.NoError(t, svc.Allow(ctx, "mfa_verify", "198.51.100.1"))
	// Same route, different IP: separate window.
	assert.NoError(t, svc.Allow(ctx, "login", "198.51.100.2"))
}

func TestRateLimitService_WindowResets(t *testing.T) {
	mem := store.NewMemoryStore()
	now := time.Now()
	mem.SetClock(func() time.Time { return now })

	svc := NewRateLimitService(mem, config.RateLimitConfig{
		Window:   time.Minute,
		MaxPerIP: 1,
	}, discardLogger())
	ctx := context.Background()

	require.NoError(t, svc.Allow(ctx, "login", "198.51.100.1"))
	assert.ErrorIs(t, svc.Allow(ctx, "login", "198.51.100.1"), models.ErrRateLimited)

	now = now.Add(61 * time.Second)
	assert.NoError(t, svc.Allow(ctx, "login", "198.51.100.1"))
}

func TestRateLimitService_FailOpenByDefault(t *testing.T) {
	svc := NewRateLimitService(&failingStore{}, config.RateLimitConfig{
		Window:   time.Minute,
		MaxPerIP: 1,
	}, discardLogger())

	assert.NoError(t, svc.Allow(context.Background(), "login", "198.51.100.1"))
}

func TestRateLimitService_FailClosedWhenConfigured(t *testing.T) {
	svc := NewRateLimitService(&failingStore{}, config.RateLimitConfig{
		Window:     time.Minute,
		MaxPerIP:   1,
		FailClosed: true,
	}, discardLogger())

	assert.ErrorIs(t, svc.Allow(context.Background(), "login", "198.51.100.1"), models.ErrRateLimited)
}
