package bridge

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scriptbridge/internal/engine"
	"github.com/GriffinCanCode/scriptbridge/internal/native"
)

func newEngine() *engine.Engine {
	return engine.New(nil, engine.Builtins...)
}

// newTestContext creates a context on a private engine and destroys it when
// the test ends.
func newTestContext(t *testing.T, cfg Config, opts ...Option) *Context {
	t.Helper()
	opts = append([]Option{WithEngine(newEngine())}, opts...)
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Destroy()
	})
	return c
}

func TestNewAppliesFloors(t *testing.T) {
	c := newTestContext(t, Config{MaxMemoryBytes: 10, MaxTimeout: time.Millisecond})
	assert.Equal(t, int64(MinMemoryBytes), c.Config().MaxMemoryBytes)
	assert.Equal(t, MinTimeout, c.Config().MaxTimeout)
	assert.True(t, strings.HasPrefix(c.ID(), "ctx_"))
	assert.False(t, c.CreatedAt().IsZero())
}

func TestNewFromMapUnknownOptionAllocatesNothing(t *testing.T) {
	e := engine.New(nil, engine.Builtins...)

	c, err := NewFromMap(map[string]any{"gather_stats": true, "turbo": true}, WithEngine(e))
	require.Error(t, err)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrConfig)

	assert.Equal(t, 0, e.Instances())
	assert.False(t, e.Initialized())
}

func TestNewAllocationFailure(t *testing.T) {
	e := engine.New(nil, engine.Source{Name: "broken.js", Code: "function ("})

	_, err := New(DefaultConfig(), WithEngine(e))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.Equal(t, 0, e.Instances())
}

func TestEngineReferenceCounting(t *testing.T) {
	e := engine.New(nil, engine.Builtins...)

	a, err := New(DefaultConfig(), WithEngine(e))
	require.NoError(t, err)
	b, err := New(DefaultConfig(), WithEngine(e))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Instances())

	require.NoError(t, a.Destroy())
	assert.Equal(t, 1, e.Instances())

	// b keeps working after a is gone.
	out, err := b.Eval(context.Background(), "6 * 7", "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)

	require.NoError(t, b.Destroy())
	assert.Equal(t, 0, e.Instances())
	assert.True(t, e.Initialized())
}

func TestDestroy(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	require.NoError(t, c.Set("x", 1))

	fnVal, err := c.Eval(context.Background(), "(function () { return 1; })", "")
	require.NoError(t, err)
	fn := fnVal.(*Function)

	require.NoError(t, c.Destroy())
	assert.True(t, c.Destroyed())
	assert.ErrorIs(t, c.Destroy(), ErrDestroyed)
	assert.ErrorIs(t, c.Close(), ErrDestroyed)

	_, err = c.Get("x")
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, c.Set("x", 2), ErrDestroyed)
	_, err = c.Exists("x")
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = c.TypeOf("x")
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = c.InstanceOf("x", "Object")
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = c.TypeFlags("x")
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = c.Eval(context.Background(), "1", "")
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = c.DispatchFunction(context.Background(), "main")
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = c.RunGarbageCollection()
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = fn.Call(context.Background())
	assert.ErrorIs(t, err, ErrDestroyed)

	// Buffers stay readable.
	assert.NotNil(t, c.Statistics())
	assert.NotNil(t, c.Messages())
	assert.Nil(t, c.Installed())
}

func TestContextsAreIsolated(t *testing.T) {
	a := newTestContext(t, DefaultConfig())
	b := newTestContext(t, DefaultConfig())

	require.NoError(t, a.Set("shared", "from a"))

	ok, err := b.Exists("shared")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := a.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, "from a", got)

	_, err = b.Eval(context.Background(), "Object.prototype.poisoned = true", "")
	require.NoError(t, err)
	out, err := a.Eval(context.Background(), "({}).poisoned === undefined", "")
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestConcurrentOperationsSerialize(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	require.NoError(t, c.Set("counter", 0))

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := c.Eval(context.Background(), "counter = counter + 1", "")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := c.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), got)
}

func TestRegistrationIsLazyAndOnce(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	assert.Empty(t, c.Installed())

	ok, err := c.Exists("console.log")
	require.NoError(t, err)
	assert.True(t, ok)

	first := c.Installed()
	assert.Contains(t, first, "console.log")
	assert.Contains(t, first, "console.exception")
	assert.Contains(t, first, "queueMicrotask")

	_, err = c.Eval(context.Background(), "var logFn = console.log;", "")
	require.NoError(t, err)

	c.mu.Lock()
	c.ensureRegistered()
	c.ensureRegistered()
	state := c.state
	c.mu.Unlock()

	assert.Equal(t, stateReady, state)
	assert.Equal(t, first, c.Installed())

	same, err := c.Eval(context.Background(), "logFn === console.log", "")
	require.NoError(t, err)
	assert.Equal(t, true, same)

	helpers, err := c.Eval(context.Background(), "typeof _bridge.stringify + typeof structuredClone", "")
	require.NoError(t, err)
	assert.Equal(t, "functionfunction", helpers)
}

func TestRegistrationFailureIsNotFatal(t *testing.T) {
	c := newTestContext(t, DefaultConfig(), WithNatives(native.Binding{
		Name: "Math.PI.deep",
		Fn:   func(goja.FunctionCall) goja.Value { return goja.Undefined() },
	}))

	out, err := c.Eval(context.Background(), "typeof console.log", "")
	require.NoError(t, err)
	assert.Equal(t, "function", out)
	assert.NotContains(t, c.Installed(), "Math.PI.deep")
}

func TestSavedMessagesBypassOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := newTestContext(t, Config{SaveMessages: true}, WithOutput(&stdout, &stderr))

	c.Console().Output("stdout", "hi")
	assert.Equal(t, map[string][]string{"stdout": {"hi"}}, c.Messages().Snapshot())

	_, err := c.Eval(context.Background(), `console.log("a", {b: 1}); console.warn("w")`, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"hi", `a {"b":1}`}, c.Messages().Get("stdout"))
	assert.Equal(t, []string{"w"}, c.Messages().Get("stderr"))
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestConsoleWritesWhenNotSaving(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := newTestContext(t, DefaultConfig(), WithOutput(&stdout, &stderr))

	_, err := c.Eval(context.Background(), `console.info("one", 2); console.error("bad")`, "")
	require.NoError(t, err)

	assert.Equal(t, "one 2\n", stdout.String())
	assert.Equal(t, "bad\n", stderr.String())
	assert.Zero(t, c.Messages().Len())
}

func TestResetMessages(t *testing.T) {
	c := newTestContext(t, Config{SaveMessages: true})

	_, err := c.Eval(context.Background(), `console.log("before")`, "")
	require.NoError(t, err)
	old := c.Messages()

	fresh := c.ResetMessages()
	assert.Zero(t, fresh.Len())
	assert.Same(t, fresh, c.Messages())

	_, err = c.Eval(context.Background(), `console.log("after")`, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"before"}, old.Get("stdout"))
	assert.Equal(t, []string{"after"}, c.Messages().Get("stdout"))
}

func TestCancelledContextNeverRuns(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Eval(ctx, "ran = true", "")
	assert.True(t, errors.Is(err, context.Canceled))

	ok, err := c.Exists("ran")
	require.NoError(t, err)
	assert.False(t, ok)
}
