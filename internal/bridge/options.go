package bridge

import (
	"io"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/engine"
	"github.com/GriffinCanCode/scriptbridge/internal/native"
)

// Option customizes a Context.
type Option func(*Context)

// WithLogger sets the logger used for lifecycle and registration events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder attaches an operation recorder such as Prometheus metrics.
func WithRecorder(r Recorder) Option {
	return func(c *Context) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithEngine uses e instead of engine.Default().
func WithEngine(e *engine.Engine) Option {
	return func(c *Context) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithOutput redirects console output that is not captured.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Context) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithID overrides the generated context id.
func WithID(id string) Option {
	return func(c *Context) {
		c.id = id
	}
}

// WithNatives installs extra host functions alongside the console.
func WithNatives(bindings ...native.Binding) Option {
	return func(c *Context) {
		c.natives = append(c.natives, bindings...)
	}
}
