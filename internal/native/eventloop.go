package native

import (
	"github.com/dop251/goja"
)

// EventLoopBindings returns the event-loop hooks that the goja_nodejs loop
// does not install itself. Timers (setTimeout, setInterval, setImmediate and
// clear*) come with the loop.
func EventLoopBindings(vm *goja.Runtime) []Binding {
	return []Binding{
		{Name: "queueMicrotask", Fn: queueMicrotask(vm)},
	}
}

// queueMicrotask schedules fn as a promise reaction, so it runs once the
// current script or callback returns.
func queueMicrotask(vm *goja.Runtime) Func {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("queueMicrotask: argument must be a function"))
		}
		promise, resolve, _ := vm.NewPromise()
		then, _ := goja.AssertFunction(vm.ToValue(promise).ToObject(vm).Get("then"))
		if _, err := then(vm.ToValue(promise), vm.ToValue(func(goja.FunctionCall) goja.Value {
			if _, err := fn(goja.Undefined()); err != nil {
				panic(err)
			}
			return goja.Undefined()
		})); err != nil {
			panic(err)
		}
		resolve(goja.Undefined())
		return goja.Undefined()
	}
}
