package cli

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	logger "spendlens/internal/log"
)

func TestGracefulShutdown_Stop(t *testing.T) {
	l := logger.New(logger.Config{Output: io.Discard})
	cleaned := make(chan struct{})

	ctx, stop, done := GracefulShutdown(l, time.Second, func(ctx context.Context) {
		close(cleaned)
	})
	stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup was not called")
	}
}

func TestGracefulShutdown_Timeout(t *testing.T) {
	l := logger.New(logger.Config{Output: io.Discard})
	release := make(chan struct{})
	defer close(release)

	_, stop, done := GracefulShutdown(l, 20*time.Millisecond, func(ctx context.Context) {
		<-release
	})
	stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not release shutdown")
	}
}
