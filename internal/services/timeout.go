package services

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single call to a store or provider.
const DefaultTimeout = 10 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// bounded runs fn with its own deadline derived from ctx.
func bounded(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := withTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
