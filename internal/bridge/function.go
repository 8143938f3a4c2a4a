package bridge

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

// Function is a host handle on a script function. Handles are produced when
// a script function crosses into the host and stay bound to their context.
type Function struct {
	ctx  *Context
	obj  *goja.Object
	fn   goja.Callable
	name string
}

var _ marshal.ScriptValuer = (*Function)(nil)

func (c *Context) wrapFunction(obj *goja.Object, fn goja.Callable) any {
	name := ""
	if v := obj.Get("name"); !nullish(v) {
		name = v.String()
	}
	return &Function{ctx: c, obj: obj, fn: fn, name: name}
}

// Name returns the function's name property.
func (f *Function) Name() string {
	return f.name
}

// Call invokes the function with host arguments.
func (f *Function) Call(ctx context.Context, args ...any) (any, error) {
	c := f.ctx
	var out any
	err := c.guard(ctx, OpCall, func(s *opScope) error {
		vals := make([]goja.Value, len(args))
		for i, a := range args {
			v, err := c.marshaler.ToScriptContext(s.ctx, a)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		res, err := f.fn(goja.Undefined(), vals...)
		if err != nil {
			return s.scriptError(err)
		}
		h, err := c.marshaler.ToHostContext(s.ctx, res)
		out = h
		return err
	})
	return out, err
}

// ScriptValue hands the original function back to its own runtime.
func (f *Function) ScriptValue(vm *goja.Runtime) (goja.Value, error) {
	if vm != f.ctx.vm || vm == nil {
		return nil, fmt.Errorf("function %q belongs to context %s", f.name, f.ctx.id)
	}
	return f.obj, nil
}
