package bridge

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/engine"
	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
	"github.com/GriffinCanCode/scriptbridge/internal/native"
	"github.com/GriffinCanCode/scriptbridge/internal/shared/id"
)

type state int

const (
	stateConstructed state = iota
	stateReady
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateConstructed:
		return "constructed"
	case stateReady:
		return "ready"
	case stateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// frameBytes approximates the memory one call frame may hold; the memory
// limit is expressed to the runtime as a call stack depth.
const frameBytes = 1024

// Context is one isolated script environment.
type Context struct {
	id       string
	cfg      Config
	created  time.Time
	logger   *zap.Logger
	recorder Recorder
	engine   *engine.Engine
	stdout   io.Writer
	stderr   io.Writer
	natives  []native.Binding

	// Isolate scope. Everything below is owned by the holder of mu.
	mu        sync.Mutex
	state     state
	programs  int
	loop      *eventloop.EventLoop
	vm        *goja.Runtime
	global    *goja.Object
	marshaler *marshal.Marshaler
	registry  *native.Registry
	console   *native.Console
	ready     atomic.Bool

	bufMu    sync.Mutex
	stats    *Statistics
	messages *Messages
}

// New creates a context. The configuration is normalized first; the engine
// is only touched once the options are known to be valid.
func New(cfg Config, opts ...Option) (*Context, error) {
	c := &Context{
		cfg:      cfg.Normalize(),
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		stats:    newStatistics(),
		messages: newMessages(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = engine.Default()
	}
	if c.id == "" {
		c.id = id.Default().NewContextID().String()
	}

	if err := c.engine.Acquire(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	if err := c.allocate(); err != nil {
		c.engine.Release()
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	c.created = time.Now()
	c.recorder.ContextCreated()
	c.logger.Info("context created",
		zap.String("context_id", c.id),
		zap.Bool("gather_stats", c.cfg.GatherStats),
		zap.Bool("save_messages", c.cfg.SaveMessages),
		zap.Int64("max_memory_bytes", c.cfg.MaxMemoryBytes),
		zap.Duration("max_timeout", c.cfg.MaxTimeout))
	return c, nil
}

// NewFromMap parses an option bag and creates a context from it.
func NewFromMap(raw map[string]any, opts ...Option) (*Context, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// allocate builds the event loop and its runtime.
func (c *Context) allocate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime setup: %v", r)
		}
	}()

	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false))
	loop.Run(func(vm *goja.Runtime) {
		c.vm = vm
	})
	if c.vm == nil {
		return fmt.Errorf("event loop produced no runtime")
	}

	c.vm.SetMaxCallStackSize(int(c.cfg.MaxMemoryBytes / frameBytes))
	c.loop = loop
	c.global = c.vm.GlobalObject()
	c.marshaler = marshal.New(c.vm, marshal.WithFunctionHook(c.wrapFunction))
	c.registry = native.NewRegistry(c.vm, c.logger.With(zap.String("context_id", c.id)))

	consoleOpts := []native.ConsoleOption{native.WithWriters(c.stdout, c.stderr)}
	if c.cfg.SaveMessages {
		consoleOpts = append(consoleOpts, native.WithSink(native.SinkFunc(func(channel, msg string) {
			c.currentMessages().Append(channel, msg)
		})))
	}
	c.console = native.NewConsole(consoleOpts...)
	return nil
}

// ID returns the context identifier.
func (c *Context) ID() string {
	return c.id
}

// Config returns the effective configuration.
func (c *Context) Config() Config {
	return c.cfg
}

// CreatedAt returns when the context was created.
func (c *Context) CreatedAt() time.Time {
	return c.created
}

// Console returns the console capability, for host-side messages.
func (c *Context) Console() *native.Console {
	return c.console
}

// Destroyed reports whether Destroy has run.
func (c *Context) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateDestroyed
}

// Installed lists the natives registered so far.
func (c *Context) Installed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		return nil
	}
	return c.registry.Installed()
}

// Destroy releases the runtime and then the engine reference. Calls after
// the first return ErrDestroyed. It waits for a running operation to finish.
func (c *Context) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateDestroyed {
		return ErrDestroyed
	}
	c.state = stateDestroyed

	// The isolated environment goes first.
	c.loop.Terminate()
	c.loop = nil
	c.vm = nil
	c.global = nil
	c.marshaler = nil
	c.registry = nil

	c.engine.Release()
	c.recorder.ContextDestroyed()
	c.logger.Info("context destroyed",
		zap.String("context_id", c.id),
		zap.Duration("lifetime", time.Since(c.created)))
	return nil
}

// Close is Destroy, for io.Closer.
func (c *Context) Close() error {
	return c.Destroy()
}
