package bridge

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

// splitPath validates a dotted global path such as "config.limits.max".
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

func nullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// lookup walks parts from the global object. Primitives along the way are
// boxed, so "name.length" resolves. found is false as soon as a segment is
// missing.
func (c *Context) lookup(parts []string) (value goja.Value, found bool) {
	var cur goja.Value = c.global
	for _, p := range parts {
		if nullish(cur) {
			return nil, false
		}
		next := cur.ToObject(c.vm).Get(p)
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// parentOf resolves every segment but the last, creating plain objects for
// missing or nullish segments.
func (c *Context) parentOf(path string, parts []string) (*goja.Object, error) {
	obj := c.global
	for _, p := range parts[:len(parts)-1] {
		next := obj.Get(p)
		if nullish(next) {
			created := c.vm.NewObject()
			if err := obj.Set(p, created); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
			}
			obj = created
			continue
		}
		child, ok := next.(*goja.Object)
		if !ok {
			return nil, fmt.Errorf("%w: %s: segment %q is not an object", ErrInvalidPath, path, p)
		}
		obj = child
	}
	return obj, nil
}

// Get returns the host form of the value at path, or nil when the path does
// not resolve.
func (c *Context) Get(path string) (any, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	var out any
	err = c.guard(context.Background(), OpGet, func(s *opScope) error {
		v, found := c.lookup(parts)
		if !found {
			return nil
		}
		h, err := c.marshaler.ToHostContext(s.ctx, v)
		out = h
		return err
	})
	return out, err
}

// Set stores value at path, creating intermediate objects.
func (c *Context) Set(path string, value any) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	return c.guard(context.Background(), OpSet, func(s *opScope) error {
		parent, err := c.parentOf(path, parts)
		if err != nil {
			return err
		}
		sv, err := c.marshaler.ToScriptContext(s.ctx, value)
		if err != nil {
			return err
		}
		if err := parent.Set(parts[len(parts)-1], sv); err != nil {
			return s.scriptError(err)
		}
		return nil
	})
}

// Exists reports whether path resolves to a property, even an undefined one.
func (c *Context) Exists(path string) (bool, error) {
	parts, err := splitPath(path)
	if err != nil {
		return false, err
	}
	var found bool
	err = c.guard(context.Background(), OpExists, func(s *opScope) error {
		_, found = c.lookup(parts)
		return nil
	})
	return found, err
}

// TypeOf names the type of the value at path: undefined, null, boolean,
// number, string, symbol, bigint, array, function or object.
func (c *Context) TypeOf(path string) (string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return "", err
	}
	name := "undefined"
	err = c.guard(context.Background(), OpTypeOf, func(s *opScope) error {
		if v, found := c.lookup(parts); found {
			name = c.typeName(v)
		}
		return nil
	})
	return name, err
}

func (c *Context) typeName(v goja.Value) string {
	k := c.marshaler.Classify(v)
	switch {
	case k.Has(marshal.KindUndefined):
		return "undefined"
	case k.Has(marshal.KindNull):
		return "null"
	case k.Has(marshal.KindBoolean):
		return "boolean"
	case k.Has(marshal.KindNumber):
		return "number"
	case k.Has(marshal.KindString):
		return "string"
	case k.Has(marshal.KindSymbol):
		return "symbol"
	case k.Has(marshal.KindArray):
		return "array"
	case k.Has(marshal.KindFunction):
		return "function"
	case k.Has(marshal.KindObject):
		return "object"
	}
	if _, ok := v.Export().(*big.Int); ok {
		return "bigint"
	}
	return "undefined"
}

// InstanceOf reports whether the value at objectPath is an instance of the
// constructor at ctorPath. A missing object is not an instance of anything.
func (c *Context) InstanceOf(objectPath, ctorPath string) (bool, error) {
	objParts, err := splitPath(objectPath)
	if err != nil {
		return false, err
	}
	ctorParts, err := splitPath(ctorPath)
	if err != nil {
		return false, err
	}
	var is bool
	err = c.guard(context.Background(), OpInstanceOf, func(s *opScope) error {
		ctor, found := c.lookup(ctorParts)
		if !found || nullish(ctor) {
			return fmt.Errorf("%w: %s", ErrNotFound, ctorPath)
		}
		ctorObj, ok := ctor.(*goja.Object)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFunction, ctorPath)
		}
		if _, ok := goja.AssertFunction(ctorObj); !ok {
			return fmt.Errorf("%w: %s", ErrNotFunction, ctorPath)
		}
		v, found := c.lookup(objParts)
		if !found {
			return nil
		}
		is = c.vm.InstanceOf(v, ctorObj)
		return nil
	})
	return is, err
}

// TypeFlags returns the kind mask of the value at path. Missing paths report
// marshal.KindUndefined.
func (c *Context) TypeFlags(path string) (marshal.Kind, error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	kind := marshal.KindUndefined
	err = c.guard(context.Background(), OpTypeFlags, func(s *opScope) error {
		if v, found := c.lookup(parts); found {
			kind = c.marshaler.Classify(v)
		}
		return nil
	})
	return kind, err
}
