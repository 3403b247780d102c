package pollagent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedTool(t *testing.T, name string) *Tool {
	t.Helper()
	tool, err := NewDynamicTool(name, "desc", map[string]any{"type": "object"},
		func(context.Context, any) (any, error) { return name, nil })
	require.NoError(t, err)
	return tool
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	a := namedTool(t, "alpha")
	require.NoError(t, reg.Register(a))
	got, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DuplicateKeepsOriginal(t *testing.T) {
	reg := NewRegistry()
	first := namedTool(t, "alpha")
	require.NoError(t, reg.Register(first))

	err := reg.Register(namedTool(t, "alpha"))
	require.ErrorIs(t, err, ErrDuplicateTool)
	assert.True(t, IsConfigError(err))
	got, _ := reg.Get("alpha")
	assert.Same(t, first, got)
}

func TestRegistry_RegisterIsAtomic(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(namedTool(t, "alpha")))

	err := reg.Register(namedTool(t, "beta"), namedTool(t, "alpha"))
	require.ErrorIs(t, err, ErrDuplicateTool)
	_, ok := reg.Get("beta")
	assert.False(t, ok)

	err = reg.Register(namedTool(t, "gamma"), namedTool(t, "gamma"))
	require.ErrorIs(t, err, ErrDuplicateTool)
	assert.Equal(t, []string{"alpha"}, reg.Names())
}

func TestRegistry_NilTool(t *testing.T) {
	reg := NewRegistry()
	require.ErrorIs(t, reg.Register(nil), ErrNilHandler)
	require.ErrorIs(t, reg.Register(&Tool{name: "bare"}), ErrNilHandler)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Sealed(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(namedTool(t, "alpha")))
	reg.seal()
	err := reg.Register(namedTool(t, "beta"))
	require.ErrorIs(t, err, ErrRegisterWhileListening)
	assert.Equal(t, []string{"alpha"}, reg.Names())
	reg.unseal()
	require.NoError(t, reg.Register(namedTool(t, "beta")))
}

func TestRegistry_ToolsSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(namedTool(t, "zeta"), namedTool(t, "alpha"), namedTool(t, "mid")))
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	reg := NewRegistry()
	tool := namedTool(t, "same")
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 16 {
		wg.Go(func() {
			if reg.Register(tool) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
