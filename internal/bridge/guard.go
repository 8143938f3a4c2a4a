package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// opScope is the per-operation part of the guard: the timeout watchdog, the
// cancellation hook and the reason the runtime was interrupted, if it was.
type opScope struct {
	c       *Context
	timer   *time.Timer
	stopCtx func() bool
	cause   atomic.Pointer[error]

	// ctx is done once the operation is interrupted. Value conversion polls it.
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.Mutex
	closed bool
}

func (c *Context) openScope(ctx context.Context) *opScope {
	s := &opScope{c: c}
	s.ctx, s.cancel = context.WithCancelCause(context.WithoutCancel(ctx))
	s.timer = time.AfterFunc(c.cfg.MaxTimeout, func() {
		s.interrupt(ErrTimeout)
	})
	s.stopCtx = context.AfterFunc(ctx, func() {
		s.interrupt(ctx.Err())
	})
	return s
}

// interrupt stops the runtime unless the scope is already closed. Holding mu
// keeps a late watchdog from interrupting whatever runs after close.
func (s *opScope) interrupt(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cause.CompareAndSwap(nil, &err)
	s.cancel(err)
	s.c.vm.Interrupt(err)
	s.c.loop.StopNoWait()
}

// interrupted returns why the runtime was stopped, or nil.
func (s *opScope) interrupted() error {
	if p := s.cause.Load(); p != nil {
		return *p
	}
	return nil
}

// close disarms the watchdog and drops an interrupt that arrived after the
// body finished.
func (s *opScope) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stopCtx()
	s.timer.Stop()
	s.cancel(context.Canceled)
	s.c.vm.ClearInterrupt()
}

// guard runs body inside the isolate and operation scopes. Natives are
// installed before the body runs; scopes are released in reverse order on
// every path.
func (c *Context) guard(ctx context.Context, op string, body func(s *opScope) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateDestroyed {
		return ErrDestroyed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := c.openScope(ctx)
	defer s.close()
	defer func() {
		if r := recover(); r != nil {
			err = c.recovered(s, r)
		}
	}()

	c.ensureRegistered()
	return c.instrument(op, func() (err error) {
		// A panicking body is still timed and counted.
		defer func() {
			if r := recover(); r != nil {
				err = c.recovered(s, r)
			}
		}()
		return body(s)
	})
}

// recovered turns an engine panic into an error.
func (c *Context) recovered(s *opScope, r any) error {
	switch v := r.(type) {
	case *goja.InterruptedError:
		if cause := s.interrupted(); cause != nil {
			return cause
		}
		return fmt.Errorf("%w: %s", ErrException, v.Error())
	case *goja.Exception:
		return fmt.Errorf("%w: %s", ErrException, v.Error())
	case error:
		return fmt.Errorf("%w: panic: %v", ErrException, v)
	}
	return fmt.Errorf("%w: panic: %v", ErrException, r)
}

// scriptError maps an error returned by the runtime onto the bridge errors.
func (s *opScope) scriptError(err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause := s.interrupted(); cause != nil {
			return cause
		}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return fmt.Errorf("%w: %s", ErrException, ex.Value().String())
	}
	return err
}
