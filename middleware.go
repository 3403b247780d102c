package pollagent

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps the handler of tool with cross-cutting behavior (logging, timeout).
type Middleware func(next Handler, tool *Tool) Handler

// LoggingMiddleware logs start, end, duration, and errors of every job execution.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler, tool *Tool) Handler {
		name := tool.Name()
		return func(ctx context.Context, input any) (any, error) {
			logger.InfoContext(ctx, "tool start", "tool", name)
			start := time.Now()
			out, err := next(ctx, input)
			dur := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "tool error", "tool", name, "duration", dur, "error", err)
				return nil, err
			}
			logger.InfoContext(ctx, "tool end", "tool", name, "duration", dur)
			return out, nil
		}
	}
}

// TimeoutMiddleware bounds every execution with a context deadline. When the tool also carries
// WithTimeout, the shorter deadline wins. Handlers that ignore ctx keep running.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler, _ *Tool) Handler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, input any) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, input)
		}
	}
}

// chain builds the handler an Agent runs for tool: the tool's own timeout innermost, then middlewares in
// onion order (first middleware is outermost).
func chain(tool *Tool, middlewares []Middleware) Handler {
	h := tool.handler
	if d := tool.Timeout(); d > 0 {
		h = TimeoutMiddleware(d)(h, tool)
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h, tool)
	}
	return h
}
