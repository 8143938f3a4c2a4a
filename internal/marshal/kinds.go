package marshal

import (
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Kind is a set of engine value kinds, one bit per kind. Kinds overlap: an
// Int8Array is also a TypedArray, an ArrayBufferView and an Object.
type Kind uint64

const (
	KindArgumentsObject Kind = 1 << iota
	KindArrayBuffer
	KindArrayBufferView
	KindArray
	KindBooleanObject
	KindBoolean
	KindDataView
	KindDate
	KindExternal
	KindFalse
	KindFloat32Array
	KindFloat64Array
	KindFunction
	KindGeneratorFunction
	KindGeneratorObject
	KindInt16Array
	KindInt32Array
	KindInt32
	KindInt8Array
	KindMapIterator
	KindMap
	KindName
	KindNativeError
	KindNull
	KindNumberObject
	KindNumber
	KindObject
	KindPromise
	KindRegExp
	KindSetIterator
	KindSet
	KindStringObject
	KindString
	KindSymbolObject
	KindSymbol
	KindTrue
	KindTypedArray
	KindUint16Array
	KindUint32Array
	KindUint32
	KindUint8Array
	KindUint8ClampedArray
	KindUndefined
	KindWeakMap
	KindWeakSet
)

// Composite masks used by conversion dispatch.
const (
	KindNullish     = KindNull | KindUndefined
	KindArrayLike   = KindArray | KindTypedArray | KindArgumentsObject
	KindBoxed       = KindBooleanObject | KindNumberObject | KindStringObject
	KindUnsupported = KindSymbol | KindSymbolObject | KindMap | KindSet | KindWeakMap | KindWeakSet |
		KindPromise | KindGeneratorObject | KindMapIterator | KindSetIterator | KindDataView | KindExternal
)

var kindNames = []string{
	"arguments", "arraybuffer", "arraybufferview", "array", "booleanobject", "boolean",
	"dataview", "date", "external", "false", "float32array", "float64array", "function",
	"generatorfunction", "generatorobject", "int16array", "int32array", "int32", "int8array",
	"mapiterator", "map", "name", "nativeerror", "null", "numberobject", "number", "object",
	"promise", "regexp", "setiterator", "set", "stringobject", "string", "symbolobject",
	"symbol", "true", "typedarray", "uint16array", "uint32array", "uint32", "uint8array",
	"uint8clampedarray", "undefined", "weakmap", "weakset",
}

// Has reports whether k shares any bit with mask.
func (k Kind) Has(mask Kind) bool {
	return k&mask != 0
}

// Is reports whether k contains every bit of mask.
func (k Kind) Is(mask Kind) bool {
	return k&mask == mask
}

func (k Kind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	for i, name := range kindNames {
		if k&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// classKinds maps internal class names, which scripts cannot forge, to kinds.
var classKinds = map[string]Kind{
	"Arguments": KindArgumentsObject,
	"Array":     KindArray,
	"Boolean":   KindBooleanObject,
	"Date":      KindDate,
	"Error":     KindNativeError,
	"Number":    KindNumberObject,
	"String":    KindStringObject,
	"RegExp":    KindRegExp,
}

var (
	typeTime        = reflect.TypeOf(time.Time{})
	typeMapEntries  = reflect.TypeOf([][2]any{})
	typePromise     = reflect.TypeOf((*goja.Promise)(nil))
	typeArrayBuffer = reflect.TypeOf(goja.ArrayBuffer{})
)

// exportKinds maps the export types of engine objects whose class is plain
// "Object" to kinds.
var exportKinds = map[reflect.Type]Kind{
	typeTime:        KindDate,
	typeMapEntries:  KindMap,
	typePromise:     KindPromise,
	typeArrayBuffer: KindArrayBuffer,
}

var typedArrayKinds = map[string]Kind{
	"Int8Array":         KindInt8Array,
	"Uint8Array":        KindUint8Array,
	"Uint8ClampedArray": KindUint8ClampedArray,
	"Int16Array":        KindInt16Array,
	"Uint16Array":       KindUint16Array,
	"Int32Array":        KindInt32Array,
	"Uint32Array":       KindUint32Array,
	"Float32Array":      KindFloat32Array,
	"Float64Array":      KindFloat64Array,
	"BigInt64Array":     0,
	"BigUint64Array":    0,
}

// maxProtoChain bounds prototype walks through proxies.
const maxProtoChain = 64

// Classifier computes Kind masks for values of one runtime. It never trusts
// Symbol.toStringTag: kinds come from the engine's internal class, the
// export type, or brand checks against intrinsics captured when the
// classifier is created.
type Classifier struct {
	vm *goja.Runtime
	in *intrinsics
}

// intrinsics holds the builtin functions and prototypes used as brand
// checks. A brand function throws unless its receiver carries the internal
// slot it reads.
type intrinsics struct {
	setSize       goja.Callable
	weakMapHas    goja.Callable
	weakSetHas    goja.Callable
	dataViewSize  goja.Callable
	symbolValueOf goja.Callable
	typedArrayTag goja.Callable

	mapIterator       *goja.Object
	setIterator       *goja.Object
	generator         *goja.Object
	generatorFunction *goja.Object
	date              goja.Value
}

var (
	intrinsicsOnce sync.Once
	intrinsicsPrg  *goja.Program
)

const intrinsicsSrc = `(function () {
	var own = function (o, k) {
		var d = Object.getOwnPropertyDescriptor(o, k);
		return d.get || d.value;
	};
	var genFn = Object.getPrototypeOf(function* () {});
	return {
		setSize: own(Set.prototype, "size"),
		weakMapHas: WeakMap.prototype.has,
		weakSetHas: WeakSet.prototype.has,
		dataViewSize: own(DataView.prototype, "byteLength"),
		symbolValueOf: Symbol.prototype.valueOf,
		typedArrayTag: own(Object.getPrototypeOf(Int8Array.prototype), Symbol.toStringTag),
		mapIterator: Object.getPrototypeOf(new Map().keys()),
		setIterator: Object.getPrototypeOf(new Set().values()),
		generator: genFn.prototype,
		generatorFunction: genFn,
		date: Date
	};
})()`

// NewClassifier binds a classifier to vm. Create it before untrusted code
// runs so the captured intrinsics are the originals.
func NewClassifier(vm *goja.Runtime) *Classifier {
	c := &Classifier{vm: vm}
	c.in = captureIntrinsics(vm)
	return c
}

func captureIntrinsics(vm *goja.Runtime) (in *intrinsics) {
	intrinsicsOnce.Do(func() {
		intrinsicsPrg = goja.MustCompile("intrinsics.js", intrinsicsSrc, true)
	})
	in = &intrinsics{}
	defer func() {
		// A runtime whose builtins were already tampered with loses the brand
		// checks and falls back to class and export identity.
		if recover() != nil {
			in = &intrinsics{}
		}
	}()
	v, err := vm.RunProgram(intrinsicsPrg)
	if err != nil {
		return in
	}
	obj := v.ToObject(vm)
	fn := func(name string) goja.Callable {
		f, _ := goja.AssertFunction(obj.Get(name))
		return f
	}
	proto := func(name string) *goja.Object {
		o, _ := obj.Get(name).(*goja.Object)
		return o
	}
	in.setSize = fn("setSize")
	in.weakMapHas = fn("weakMapHas")
	in.weakSetHas = fn("weakSetHas")
	in.dataViewSize = fn("dataViewSize")
	in.symbolValueOf = fn("symbolValueOf")
	in.typedArrayTag = fn("typedArrayTag")
	in.mapIterator = proto("mapIterator")
	in.setIterator = proto("setIterator")
	in.generator = proto("generator")
	in.generatorFunction = proto("generatorFunction")
	in.date = obj.Get("date")
	return in
}

// Classify is a one-shot helper around NewClassifier.
func Classify(vm *goja.Runtime, v goja.Value) Kind {
	return NewClassifier(vm).Classify(v)
}

// Classify returns the kind mask of v.
func (c *Classifier) Classify(v goja.Value) Kind {
	if v == nil || goja.IsUndefined(v) {
		return KindUndefined
	}
	if goja.IsNull(v) {
		return KindNull
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return classifyPrimitive(v)
	}

	k := KindObject
	if _, ok := goja.AssertFunction(obj); ok {
		k |= KindFunction
		if c.inherits(obj, c.in.generatorFunction) {
			k |= KindGeneratorFunction
		}
		return k
	}
	if kind, ok := classKinds[obj.ClassName()]; ok {
		return k | kind
	}
	if kind, ok := exportKinds[obj.ExportType()]; ok {
		return k | kind
	}
	return k | c.branded(obj)
}

// branded runs the brand checks for kinds the engine reports as plain objects.
func (c *Classifier) branded(obj *goja.Object) Kind {
	in := c.in
	if name, ok := c.call(in.typedArrayTag, obj); ok && !nullish(name) {
		return typedArrayKinds[name.String()] | KindTypedArray | KindArrayBufferView
	}
	switch {
	case c.brand(in.setSize, obj):
		return KindSet
	case c.brand(in.weakMapHas, obj):
		return KindWeakMap
	case c.brand(in.weakSetHas, obj):
		return KindWeakSet
	case c.brand(in.dataViewSize, obj):
		return KindDataView | KindArrayBufferView
	case c.brand(in.symbolValueOf, obj):
		return KindSymbolObject
	case c.inherits(obj, in.mapIterator):
		return KindMapIterator
	case c.inherits(obj, in.setIterator):
		return KindSetIterator
	case c.inherits(obj, in.generator):
		return KindGeneratorObject
	}
	return 0
}

func (c *Classifier) brand(fn goja.Callable, obj *goja.Object) bool {
	_, ok := c.call(fn, obj)
	return ok
}

func (c *Classifier) call(fn goja.Callable, obj *goja.Object) (res goja.Value, ok bool) {
	if fn == nil {
		return nil, false
	}
	res, err := fn(obj, goja.Undefined())
	return res, err == nil
}

// inherits reports whether proto is on obj's prototype chain.
func (c *Classifier) inherits(obj, proto *goja.Object) (found bool) {
	if proto == nil {
		return false
	}
	defer func() {
		// Proxy traps may throw.
		if recover() != nil {
			found = false
		}
	}()
	p := obj.Prototype()
	for i := 0; p != nil && i < maxProtoChain; i++ {
		if p.SameAs(proto) {
			return true
		}
		p = p.Prototype()
	}
	return false
}

func nullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func classifyPrimitive(v goja.Value) Kind {
	// Symbols export as their description string.
	if _, ok := v.(*goja.Symbol); ok {
		return KindSymbol | KindName
	}
	switch x := v.Export().(type) {
	case bool:
		if x {
			return KindBoolean | KindTrue
		}
		return KindBoolean | KindFalse
	case int64:
		return KindNumber | integerKinds(float64(x), true)
	case float64:
		return KindNumber | integerKinds(x, false)
	case string:
		return KindString | KindName
	}
	return 0
}

func integerKinds(f float64, integral bool) Kind {
	if !integral && (f != math.Trunc(f) || math.IsInf(f, 0) || (f == 0 && math.Signbit(f))) {
		return 0
	}
	var k Kind
	if f >= math.MinInt32 && f <= math.MaxInt32 {
		k |= KindInt32
	}
	if f >= 0 && f <= math.MaxUint32 {
		k |= KindUint32
	}
	return k
}
