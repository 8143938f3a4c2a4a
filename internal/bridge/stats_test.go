package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	op  string
	err error
}

type fakeRecorder struct {
	mu        sync.Mutex
	created   int
	destroyed int
	ops       []recordedOp
}

func (r *fakeRecorder) ContextCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *fakeRecorder) ContextDestroyed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed++
}

func (r *fakeRecorder) RecordOperation(op string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{op: op, err: err})
}

func TestMissingPathRecordsGet(t *testing.T) {
	c := newTestContext(t, Config{GatherStats: true})

	got, err := c.Get("missing.path")
	require.NoError(t, err)
	assert.Nil(t, got)

	st, ok := c.Statistics().Get(OpGet)
	require.True(t, ok)
	assert.Equal(t, int64(1), st.Count)
	assert.Equal(t, []string{OpGet}, c.Statistics().Operations())
}

func TestStatisticsPerOperation(t *testing.T) {
	c := newTestContext(t, Config{GatherStats: true, SaveMessages: true})
	ctx := context.Background()

	require.NoError(t, c.Set("x", 1))
	_, _ = c.Get("x")
	_, _ = c.Get("x")
	_, _ = c.Exists("x")
	_, _ = c.TypeOf("x")
	_, _ = c.InstanceOf("x", "Object")
	_, _ = c.TypeFlags("x")
	_, _ = c.Eval(ctx, "function f() { return 1; }", "")
	_, _ = c.Eval(ctx, "syntax error here", "")
	_, _ = c.DispatchFunction(ctx, "f")
	_, _ = c.RunGarbageCollection()

	fn, err := c.Eval(ctx, "f", "")
	require.NoError(t, err)
	_, err = fn.(*Function).Call(ctx)
	require.NoError(t, err)

	want := map[string]int64{
		OpSet: 1, OpGet: 2, OpExists: 1, OpTypeOf: 1, OpInstanceOf: 1, OpTypeFlags: 1,
		OpEval: 3, OpDispatch: 1, OpRunGC: 1, OpCall: 1,
	}
	snap := c.Statistics().Snapshot()
	require.Len(t, snap, len(want))
	for op, count := range want {
		assert.Equal(t, count, snap[op].Count, op)
		assert.GreaterOrEqual(t, snap[op].Total, time.Duration(0), op)
	}
}

func TestStatisticsDisabled(t *testing.T) {
	c := newTestContext(t, Config{})

	_, err := c.Get("anything")
	require.NoError(t, err)
	assert.Zero(t, c.Statistics().Len())
}

func TestResetStatistics(t *testing.T) {
	c := newTestContext(t, Config{GatherStats: true})

	_, err := c.Get("a")
	require.NoError(t, err)
	old := c.Statistics()

	fresh := c.ResetStatistics()
	assert.Zero(t, fresh.Len())
	assert.Zero(t, c.Statistics().Len())
	assert.Same(t, fresh, c.Statistics())

	_, err = c.Exists("a")
	require.NoError(t, err)

	st, ok := old.Get(OpGet)
	require.True(t, ok)
	assert.Equal(t, int64(1), st.Count)
	_, ok = old.Get(OpExists)
	assert.False(t, ok)

	_, ok = c.Statistics().Get(OpExists)
	assert.True(t, ok)
}

func TestStatMean(t *testing.T) {
	assert.Equal(t, time.Duration(0), Stat{}.Mean())
	assert.Equal(t, 2*time.Second, Stat{Count: 3, Total: 6 * time.Second}.Mean())
}

func TestRecorderSeesEveryOperation(t *testing.T) {
	rec := &fakeRecorder{}
	c, err := New(Config{SaveMessages: true}, WithRecorder(rec), WithEngine(newEngine()))
	require.NoError(t, err)

	_, err = c.Get("x")
	require.NoError(t, err)
	_, err = c.Eval(context.Background(), "throw 1", "")
	require.Error(t, err)
	require.NoError(t, c.Destroy())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.created)
	assert.Equal(t, 1, rec.destroyed)
	require.Len(t, rec.ops, 2)
	assert.Equal(t, OpGet, rec.ops[0].op)
	assert.NoError(t, rec.ops[0].err)
	assert.Equal(t, OpEval, rec.ops[1].op)

	var evalErr *EvalError
	assert.True(t, errors.As(rec.ops[1].err, &evalErr))

	// Statistics stay off even though timings were measured.
	assert.Zero(t, c.Statistics().Len())
}

func TestPanickingOperationIsCounted(t *testing.T) {
	rec := &fakeRecorder{}
	c := newTestContext(t, Config{GatherStats: true}, WithRecorder(rec))

	_, err := c.Eval(context.Background(),
		`Object.defineProperty(globalThis, "boom", {get: function () { throw new Error("x"); }}); undefined`, "")
	require.NoError(t, err)

	_, err = c.Get("boom")
	require.ErrorIs(t, err, ErrException)

	st, ok := c.Statistics().Get(OpGet)
	require.True(t, ok)
	assert.Equal(t, int64(1), st.Count)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.ops)
	last := rec.ops[len(rec.ops)-1]
	assert.Equal(t, OpGet, last.op)
	assert.ErrorIs(t, last.err, ErrException)
}

func TestBufferAccessorsRegisterNatives(t *testing.T) {
	tests := []struct {
		name   string
		access func(c *Context)
	}{
		{"statistics", func(c *Context) { c.Statistics() }},
		{"reset statistics", func(c *Context) { c.ResetStatistics() }},
		{"messages", func(c *Context) { c.Messages() }},
		{"reset messages", func(c *Context) { c.ResetMessages() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext(t, Config{GatherStats: true})
			assert.Empty(t, c.Installed())

			tt.access(c)
			assert.Contains(t, c.Installed(), "console.log")
			assert.Zero(t, c.Statistics().Len())
		})
	}

	c, err := New(DefaultConfig(), WithEngine(newEngine()))
	require.NoError(t, err)
	require.NoError(t, c.Destroy())
	assert.NotNil(t, c.Statistics())
	assert.NotNil(t, c.Messages())
}
