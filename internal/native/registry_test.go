package native

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(vm *goja.Runtime, v any) Func {
	return func(goja.FunctionCall) goja.Value {
		return vm.ToValue(v)
	}
}

func TestRegistryNestedNames(t *testing.T) {
	vm := goja.New()
	r := NewRegistry(vm, nil)

	require.NoError(t, r.Register("host.fs.read", constant(vm, "data")))
	require.NoError(t, r.Register("host.version", constant(vm, 3)))

	v, err := vm.RunString(`host.fs.read() + ":" + host.version()`)
	require.NoError(t, err)
	assert.Equal(t, "data:3", v.String())
	assert.Equal(t, []string{"host.fs.read", "host.version"}, r.Installed())
}

func TestRegistryIdempotent(t *testing.T) {
	vm := goja.New()
	r := NewRegistry(vm, nil)

	require.NoError(t, r.Register("answer", constant(vm, 1)))
	first := vm.Get("answer")
	require.NoError(t, r.Register("answer", constant(vm, 2)))

	assert.Same(t, first.(*goja.Object), vm.Get("answer").(*goja.Object))
	v, err := vm.RunString(`answer()`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())
	assert.Len(t, r.Installed(), 1)
}

func TestRegistryErrors(t *testing.T) {
	vm := goja.New()
	_, err := vm.RunString(`var taken = 5;`)
	require.NoError(t, err)

	r := NewRegistry(vm, nil)

	tests := []struct {
		name string
	}{
		{"taken.fn"},
		{""},
		{"a..b"},
		{"trailing."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.name, constant(vm, nil))
			assert.ErrorIs(t, err, ErrRegistration)
		})
	}
	assert.Empty(t, r.Installed())
}

func TestRegisterAllSkipsFailures(t *testing.T) {
	vm := goja.New()
	_, err := vm.RunString(`var blocked = "str";`)
	require.NoError(t, err)

	r := NewRegistry(vm, nil)
	n := r.RegisterAll([]Binding{
		{Name: "ok.one", Fn: constant(vm, 1)},
		{Name: "blocked.two", Fn: constant(vm, 2)},
		{Name: "ok.three", Fn: constant(vm, 3)},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"ok.one", "ok.three"}, r.Installed())
}
