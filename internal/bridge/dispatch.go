package bridge

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// DispatchFunction calls the global function at name with no arguments and
// runs the event loop until no timers or pending jobs remain. A returned
// promise is unwrapped once the loop is idle: fulfilled promises yield their
// value, rejected ones an ErrException, pending ones nil.
func (c *Context) DispatchFunction(ctx context.Context, name string) (any, error) {
	parts, err := splitPath(name)
	if err != nil {
		return nil, err
	}

	var out any
	err = c.guard(ctx, OpDispatch, func(s *opScope) error {
		v, found := c.lookup(parts)
		if !found || nullish(v) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFunction, name)
		}

		var (
			result  goja.Value
			callErr error
		)
		c.loop.Run(func(*goja.Runtime) {
			defer func() {
				if r := recover(); r != nil {
					callErr = c.recovered(s, r)
				}
			}()
			result, callErr = fn(goja.Undefined())
		})
		if cause := s.interrupted(); cause != nil {
			return cause
		}
		if callErr != nil {
			return s.scriptError(callErr)
		}

		result, err := settle(result)
		if err != nil {
			return err
		}
		h, err := c.marshaler.ToHostContext(s.ctx, result)
		out = h
		return err
	})
	return out, err
}

// settle unwraps a promise result.
func settle(v goja.Value) (goja.Value, error) {
	if nullish(v) {
		return v, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		reason := "undefined"
		if r := p.Result(); r != nil {
			reason = r.String()
		}
		return nil, fmt.Errorf("%w: promise rejected: %s", ErrException, reason)
	}
	return goja.Undefined(), nil
}
