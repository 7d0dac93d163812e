// Package store provides the TTL-keyed ephemeral store used for OTP hashes,
// rate-limit counters, and consumed MFA tickets.
// Every single-use guarantee in the auth flow rests on the atomicity of
// SetNX and Increment, so implementations must make those atomic
// across concurrent callers.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// EphemeralStore is a get/set/delete-with-TTL abstraction over an in-process
// map or an external cache. All operations honor the context deadline.
type EphemeralStore interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key with the given TTL, replacing any prior value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if key is absent. Returns true if the value was
	// stored, false if the key already existed.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// Increment atomically adds one to the counter at key and returns the new
	// count. The first increment of a window starts the TTL; later increments
	// leave it untouched so the window is fixed, not sliding.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
