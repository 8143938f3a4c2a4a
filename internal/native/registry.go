package native

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrRegistration is returned when a capability cannot be installed.
var ErrRegistration = errors.New("native registration failed")

// Func is a host function callable from scripts.
type Func func(goja.FunctionCall) goja.Value

// Binding pairs a dotted global name with its implementation.
type Binding struct {
	Name string
	Fn   Func
}

// Registry installs bindings into one runtime.
type Registry struct {
	vm        *goja.Runtime
	logger    *zap.Logger
	installed map[string]struct{}
}

// NewRegistry creates a registry targeting vm's global object.
func NewRegistry(vm *goja.Runtime, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		vm:        vm,
		logger:    logger,
		installed: make(map[string]struct{}),
	}
}

// Register installs fn under name. Installing an already registered name
// is a no-op.
func (r *Registry) Register(name string, fn Func) error {
	if _, ok := r.installed[name]; ok {
		return nil
	}
	parent, slot, err := r.resolveParent(name)
	if err != nil {
		return err
	}
	if err := parent.Set(slot, (func(goja.FunctionCall) goja.Value)(fn)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRegistration, name, err)
	}
	r.installed[name] = struct{}{}
	return nil
}

// RegisterAll installs every binding, logging failures as warnings. It
// returns the number of bindings that are installed afterwards.
func (r *Registry) RegisterAll(bindings []Binding) int {
	n := 0
	for _, b := range bindings {
		if err := r.Register(b.Name, b.Fn); err != nil {
			r.logger.Warn("could not install native binding",
				zap.String("name", b.Name),
				zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Installed lists registered names in sorted order.
func (r *Registry) Installed() []string {
	names := make([]string, 0, len(r.installed))
	for name := range r.installed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runtime returns the target runtime.
func (r *Registry) Runtime() *goja.Runtime {
	return r.vm
}

// resolveParent walks all but the last segment of name, creating plain
// objects where nothing exists yet.
func (r *Registry) resolveParent(name string) (*goja.Object, string, error) {
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if p == "" {
			return nil, "", fmt.Errorf("%w: invalid name %q", ErrRegistration, name)
		}
	}

	obj := r.vm.GlobalObject()
	for _, p := range parts[:len(parts)-1] {
		next := obj.Get(p)
		if next == nil || goja.IsUndefined(next) || goja.IsNull(next) {
			created := r.vm.NewObject()
			if err := obj.Set(p, created); err != nil {
				return nil, "", fmt.Errorf("%w: %s: %v", ErrRegistration, name, err)
			}
			obj = created
			continue
		}
		child, ok := next.(*goja.Object)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s: %q is not an object", ErrRegistration, name, p)
		}
		obj = child
	}
	return obj, parts[len(parts)-1], nil
}
