package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// Detach returns a fresh background context that preserves the logger of ctx.
// Use it for work that must survive cancellation of the inbound request.
func Detach(ctx context.Context) context.Context {
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}
	return bgCtx
}

// Dispatch executes a handler function asynchronously in a new goroutine.
// It detaches from the inbound context and handles errors and panics.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := Detach(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
