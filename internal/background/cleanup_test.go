package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingCleaner struct {
	calls   atomic.Int64
	deleted int64
	err     error
}

func (c *countingCleaner) DeleteExpired(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return c.deleted, c.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManagerRunsImmediately(t *testing.T) {
	cleaner := &countingCleaner{deleted: 3}
	cm := NewCleanupManager(cleaner, testLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return cleaner.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cm.Stop()
	<-done
}

func TestCleanupManagerStopsOnContextCancel(t *testing.T) {
	cleaner := &countingCleaner{}
	cm := NewCleanupManager(cleaner, testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop on context cancellation")
	}
}

func TestCleanupManagerSurvivesErrors(t *testing.T) {
	cleaner := &countingCleaner{err: assert.AnError}
	cm := NewCleanupManager(cleaner, testLogger(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return cleaner.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cm.Stop()
	<-done
}
