package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Program is a compiled built-in ready to run in any runtime.
type Program struct {
	Name    string
	Program *goja.Program
}

// Engine tracks live contexts and owns state compiled once per process.
type Engine struct {
	mu          sync.Mutex
	instances   int
	initialized bool
	startedAt   time.Time
	sources     []Source
	programs    []Program
	logger      *zap.Logger
}

var (
	defaultEngine *Engine
	once          sync.Once
)

// Default returns the process-wide engine.
func Default() *Engine {
	once.Do(func() {
		defaultEngine = New(zap.NewNop(), Builtins...)
	})
	return defaultEngine
}

// New creates an independent engine compiling the given sources on first use.
func New(logger *zap.Logger, sources ...Source) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sources: sources,
		logger:  logger,
	}
}

// SetLogger replaces the engine logger.
func (e *Engine) SetLogger(logger *zap.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger != nil {
		e.logger = logger
	}
}

// Acquire registers a new live instance, initializing the engine if this is
// the first one. A failed initialization leaves the count untouched.
func (e *Engine) Acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		if err := e.initialize(); err != nil {
			return err
		}
	}
	e.instances++
	return nil
}

// Release drops a live instance. The engine itself is never disposed.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.instances == 0 {
		e.logger.Warn("engine release without matching acquire")
		return
	}
	e.instances--
	if e.instances == 0 {
		e.logger.Debug("engine idle, keeping initialized state",
			zap.Duration("uptime", time.Since(e.startedAt)))
	}
}

// Instances returns the number of live instances.
func (e *Engine) Instances() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instances
}

// Initialized reports whether the first Acquire has completed.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Programs returns the compiled built-ins in registration order.
func (e *Engine) Programs() []Program {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Program, len(e.programs))
	copy(out, e.programs)
	return out
}

// initialize must be called with e.mu held.
func (e *Engine) initialize() error {
	start := time.Now()
	programs := make([]Program, 0, len(e.sources))
	for _, src := range e.sources {
		prg, err := goja.Compile(src.Name, src.Code, false)
		if err != nil {
			return fmt.Errorf("compile builtin %s: %w", src.Name, err)
		}
		programs = append(programs, Program{Name: src.Name, Program: prg})
	}

	e.programs = programs
	e.startedAt = start
	e.initialized = true

	e.logger.Info("engine initialized",
		zap.Int("builtins", len(programs)),
		zap.Duration("took", time.Since(start)))
	return nil
}
