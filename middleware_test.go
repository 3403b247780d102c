package pollagent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(t *testing.T, opts ...ToolOption) *Tool {
	t.Helper()
	tool, err := NewDynamicTool("echo", "Echo input", map[string]any{"type": "object"},
		func(_ context.Context, input any) (any, error) {
			return input, nil
		}, opts...)
	require.NoError(t, err)
	return tool
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tool := echoTool(t)
	h := LoggingMiddleware(logger)(tool.Handler(), tool)
	out, err := h(context.Background(), map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, out)
	logStr := buf.String()
	assert.Contains(t, logStr, "tool start")
	assert.Contains(t, logStr, "tool end")
	assert.Contains(t, logStr, "tool=echo")
}

func TestLoggingMiddleware_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tool := echoTool(t)
	boom := errors.New("boom")
	h := LoggingMiddleware(logger)(func(context.Context, any) (any, error) { return nil, boom }, tool)
	_, err := h(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "tool error")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestTimeoutMiddleware(t *testing.T) {
	tool := echoTool(t)
	slow := func(ctx context.Context, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err := TimeoutMiddleware(5*time.Millisecond)(slow, tool)(context.Background(), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeoutMiddleware_ZeroIsNoop(t *testing.T) {
	tool := echoTool(t)
	h := TimeoutMiddleware(0)(func(ctx context.Context, _ any) (any, error) {
		_, ok := ctx.Deadline()
		return ok, nil
	}, tool)
	out, err := h(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestChain_OnionOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Handler, _ *Tool) Handler {
			return func(ctx context.Context, input any) (any, error) {
				order = append(order, name+">")
				out, err := next(ctx, input)
				order = append(order, "<"+name)
				return out, err
			}
		}
	}
	tool := echoTool(t)
	_, err := chain(tool, []Middleware{mark("a"), mark("b")})(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "a> b> <b <a", strings.Join(order, " "))
}

func TestChain_ToolTimeout(t *testing.T) {
	tool, err := NewDynamicTool("wait", "", map[string]any{"type": "object"},
		func(ctx context.Context, _ any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, WithTimeout(5*time.Millisecond))
	require.NoError(t, err)
	_, err = chain(tool, nil)(context.Background(), map[string]any{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
