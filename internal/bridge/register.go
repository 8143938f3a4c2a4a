package bridge

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/native"
)

// ensureRegistered installs natives on the first operation. The state moves
// to ready before installing so a failing capability is not retried; the
// failure is logged and the rest stays usable. Callers hold c.mu.
func (c *Context) ensureRegistered() {
	if c.state != stateConstructed {
		return
	}
	c.state = stateReady
	c.ready.Store(true)

	installed := c.registry.RegisterAll(c.console.Bindings(c.vm))
	installed += c.registry.RegisterAll(native.EventLoopBindings(c.vm))
	installed += c.registry.RegisterAll(c.natives)
	helpers := native.RunPrograms(c.vm, c.engine.Programs(), c.logger.With(zap.String("context_id", c.id)))

	c.logger.Debug("natives registered",
		zap.String("context_id", c.id),
		zap.Int("functions", installed),
		zap.Int("helpers", helpers))
}

// prepare registers natives for accessors that do not enter the guard.
func (c *Context) prepare() {
	if c.ready.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureRegistered()
}
