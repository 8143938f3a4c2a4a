package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

func TestGetSet(t *testing.T) {
	c := newTestContext(t, DefaultConfig())

	require.NoError(t, c.Set("config.limits.max", 10))
	require.NoError(t, c.Set("config.name", "bridge"))
	require.NoError(t, c.Set("list", []any{1, "two", map[string]any{"three": 3.5}}))

	tests := []struct {
		path string
		want any
	}{
		{"config.limits.max", int64(10)},
		{"config.name", "bridge"},
		{"config.name.length", int64(6)},
		{"config", map[string]any{"limits": map[string]any{"max": int64(10)}, "name": "bridge"}},
		{"list.1", "two"},
		{"list.2.three", 3.5},
		{"missing", nil},
		{"missing.path", nil},
		{"config.limits.none.deeper", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := c.Get(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// Scripts see host writes.
	out, err := c.Eval(context.Background(), "config.limits.max * 2", "")
	require.NoError(t, err)
	assert.Equal(t, int64(20), out)
}

func TestSetReplacesNullishIntermediates(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	_, err := c.Eval(context.Background(), "var holder = {slot: null}", "")
	require.NoError(t, err)

	require.NoError(t, c.Set("holder.slot.value", true))
	got, err := c.Get("holder.slot.value")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestPathErrors(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	require.NoError(t, c.Set("num", 5))

	for _, path := range []string{"", ".", "a..b", "trailing."} {
		_, err := c.Get(path)
		assert.ErrorIs(t, err, ErrInvalidPath, "get %q", path)
		assert.ErrorIs(t, c.Set(path, 1), ErrInvalidPath, "set %q", path)
	}

	assert.ErrorIs(t, c.Set("num.inner", 1), ErrInvalidPath)
}

func TestSetMarshalErrorKeepsContextUsable(t *testing.T) {
	c := newTestContext(t, DefaultConfig())

	loop := map[string]any{}
	loop["self"] = loop
	err := c.Set("bad", loop)
	assert.ErrorIs(t, err, marshal.ErrCycle)

	err = c.Set("worse", make(chan int))
	assert.ErrorIs(t, err, marshal.ErrUnsupported)

	require.NoError(t, c.Set("fine", "ok"))
	got, err := c.Get("fine")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestGetUnsupportedValue(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	_, err := c.Eval(context.Background(), "var m = new Map(); var o = {}; o.o = o;", "")
	require.NoError(t, err)

	_, err = c.Get("m")
	assert.ErrorIs(t, err, marshal.ErrUnsupported)
	_, err = c.Get("o")
	assert.ErrorIs(t, err, marshal.ErrCycle)
}

func TestExists(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	_, err := c.Eval(context.Background(), "var obj = {defined: 1, undef: undefined, nil: null}", "")
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"obj", true},
		{"obj.defined", true},
		{"obj.undef", true},
		{"obj.nil", true},
		{"obj.missing", false},
		{"obj.nil.deeper", false},
		{"obj.toString", true},
		{"Math.PI", true},
		{"nothing", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := c.Exists(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeOf(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	_, err := c.Eval(context.Background(), `
		var v = {
			u: undefined, n: null, b: false, num: 1.5, s: "s", sym: Symbol("x"),
			arr: [1], fn: function () {}, obj: {}, date: new Date(0)
		};
	`, "")
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"v.u", "undefined"},
		{"v.n", "null"},
		{"v.b", "boolean"},
		{"v.num", "number"},
		{"v.s", "string"},
		{"v.sym", "symbol"},
		{"v.arr", "array"},
		{"v.fn", "function"},
		{"v.obj", "object"},
		{"v.date", "object"},
		{"v.missing", "undefined"},
		{"nope.deeper", "undefined"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := c.TypeOf(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstanceOf(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	_, err := c.Eval(context.Background(), `
		function Animal() {}
		function Dog() {}
		Dog.prototype = Object.create(Animal.prototype);
		var rex = new Dog();
		var ns = {Ctor: Dog};
		var notFn = 3;
	`, "")
	require.NoError(t, err)

	tests := []struct {
		object, ctor string
		want         bool
	}{
		{"rex", "Dog", true},
		{"rex", "Animal", true},
		{"rex", "Object", true},
		{"rex", "ns.Ctor", true},
		{"rex", "Array", false},
		{"notFn", "Number", false},
		{"missing", "Dog", false},
	}
	for _, tt := range tests {
		t.Run(tt.object+" instanceof "+tt.ctor, func(t *testing.T) {
			got, err := c.InstanceOf(tt.object, tt.ctor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = c.InstanceOf("rex", "Unicorn")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.InstanceOf("rex", "notFn")
	assert.ErrorIs(t, err, ErrNotFunction)
}

func TestTypeFlags(t *testing.T) {
	c := newTestContext(t, DefaultConfig())
	_, err := c.Eval(context.Background(), "var bytes = new Uint8Array(4); var n = 7;", "")
	require.NoError(t, err)

	k, err := c.TypeFlags("bytes")
	require.NoError(t, err)
	assert.True(t, k.Is(marshal.KindObject|marshal.KindTypedArray|marshal.KindUint8Array))

	k, err = c.TypeFlags("n")
	require.NoError(t, err)
	assert.True(t, k.Is(marshal.KindNumber|marshal.KindInt32|marshal.KindUint32))

	k, err = c.TypeFlags("missing")
	require.NoError(t, err)
	assert.Equal(t, marshal.KindUndefined, k)
}

func TestRoundTripThroughContext(t *testing.T) {
	c := newTestContext(t, DefaultConfig())

	values := []any{
		nil,
		true,
		int64(-12),
		2.75,
		"unicode ✓",
		[]any{},
		[]any{int64(1), []any{"nested", nil}},
		map[string]any{"a": map[string]any{"b": []any{false, 0.5}}},
	}
	for _, v := range values {
		require.NoError(t, c.Set("value", v))
		got, err := c.Get("value")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
