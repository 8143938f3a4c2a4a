package native

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/engine"
)

// RunPrograms executes precompiled helper programs in vm, logging and
// skipping the ones that fail. It returns how many ran.
func RunPrograms(vm *goja.Runtime, programs []engine.Program, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := 0
	for _, p := range programs {
		if err := runProgram(vm, p); err != nil {
			logger.Warn("could not install inlined helper",
				zap.String("program", p.Name),
				zap.Error(err))
			continue
		}
		n++
	}
	return n
}

func runProgram(vm *goja.Runtime, p engine.Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrRegistration, p.Name, r)
		}
	}()
	if _, err := vm.RunProgram(p.Program); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRegistration, p.Name, err)
	}
	return nil
}
