package marshal

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

const (
	// DefaultMaxDepth bounds nesting in both directions.
	DefaultMaxDepth = 512
	// DefaultMaxLength bounds the length of a single script array-like.
	DefaultMaxLength = 1 << 20
)

// checkEvery is how many values a conversion visits between context checks.
const checkEvery = 256

// FunctionHook turns a script function into a host value.
type FunctionHook func(obj *goja.Object, fn goja.Callable) any

// ScriptValuer is implemented by host values that already wrap a script
// value, such as function handles handed out by ToHost.
type ScriptValuer interface {
	ScriptValue(vm *goja.Runtime) (goja.Value, error)
}

// Option configures a Marshaler.
type Option func(*Marshaler)

// WithFunctionHook sets how script functions are exposed to the host.
// Without a hook, functions fail with ErrUnsupported.
func WithFunctionHook(hook FunctionHook) Option {
	return func(m *Marshaler) {
		m.functions = hook
	}
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(m *Marshaler) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) Option {
	return func(m *Marshaler) {
		if n > 0 {
			m.maxLength = n
		}
	}
}

// Marshaler converts values for a single runtime. It is not safe for
// concurrent use; callers serialize access the same way they serialize
// access to the runtime.
type Marshaler struct {
	vm         *goja.Runtime
	classifier *Classifier
	functions  FunctionHook
	maxDepth   int
	maxLength  int
	wellFormed goja.Callable
}

// New creates a Marshaler bound to vm.
func New(vm *goja.Runtime, opts ...Option) *Marshaler {
	m := &Marshaler{
		vm:         vm,
		classifier: NewClassifier(vm),
		maxDepth:   DefaultMaxDepth,
		maxLength:  DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classify returns the kind mask of v.
func (m *Marshaler) Classify(v goja.Value) Kind {
	return m.classifier.Classify(v)
}

var structCodec = sonic.Config{UseInt64: true}.Froze()

// ============================================================================
// Script -> Host
// ============================================================================

// walk is the per-conversion state shared by both directions.
type walk struct {
	ctx   context.Context
	steps int
}

// tick counts a visited value and periodically checks for cancellation.
func (w *walk) tick(path string) error {
	w.steps++
	if w.steps%checkEvery != 0 {
		return nil
	}
	if w.ctx.Err() != nil {
		return newError(path, context.Cause(w.ctx), "conversion interrupted")
	}
	return nil
}

type hostWalk struct {
	walk
	seen map[*goja.Object]struct{}
}

// ToHost converts a script value into a Go value.
func (m *Marshaler) ToHost(v goja.Value) (any, error) {
	return m.ToHostContext(context.Background(), v)
}

// ToHostContext is ToHost with a conversion that stops once ctx is done.
// The returned error then wraps context.Cause(ctx).
func (m *Marshaler) ToHostContext(ctx context.Context, v goja.Value) (any, error) {
	w := &hostWalk{walk: walk{ctx: ctx}, seen: make(map[*goja.Object]struct{})}
	return m.toHost(v, "$", 0, w)
}

func (m *Marshaler) toHost(v goja.Value, path string, depth int, w *hostWalk) (any, error) {
	if depth > m.maxDepth {
		return nil, newError(path, ErrDepth, strconv.Itoa(m.maxDepth))
	}
	if err := w.tick(path); err != nil {
		return nil, err
	}

	kind := m.classifier.Classify(v)
	switch {
	case kind.Has(KindNullish):
		return nil, nil
	case kind.Has(KindBoolean):
		return v.ToBoolean(), nil
	case kind.Has(KindNumber):
		return hostNumber(v), nil
	case kind.Has(KindString):
		return m.hostString(v, path)
	case kind.Has(KindUnsupported):
		return nil, newError(path, ErrUnsupported, kind.String())
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		if b, ok := v.Export().(*big.Int); ok {
			if b.IsInt64() {
				return b.Int64(), nil
			}
			return new(big.Int).Set(b), nil
		}
		return nil, newError(path, ErrUnsupported, fmt.Sprintf("%T", v.Export()))
	}

	if _, cyclic := w.seen[obj]; cyclic {
		return nil, newError(path, ErrCycle, "")
	}
	w.seen[obj] = struct{}{}
	defer delete(w.seen, obj)

	switch {
	case kind.Has(KindFunction):
		if m.functions == nil {
			return nil, newError(path, ErrUnsupported, "function")
		}
		fn, _ := goja.AssertFunction(obj)
		return m.functions(obj, fn), nil
	case kind.Has(KindDate):
		switch t := obj.Export().(type) {
		case time.Time:
			return t, nil
		case nil:
			// Invalid Date, the same null JSON.stringify produces.
			return nil, nil
		}
		return nil, newError(path, ErrUnsupported, "date without a time value")
	case kind.Has(KindNativeError | KindRegExp):
		return obj.String(), nil
	case kind.Has(KindBoxed):
		return m.unbox(obj, path, depth, w)
	case kind.Has(KindArrayBuffer):
		if ab, ok := obj.Export().(goja.ArrayBuffer); ok {
			return append([]byte(nil), ab.Bytes()...), nil
		}
		return nil, newError(path, ErrUnsupported, "arraybuffer without contents")
	case kind.Has(KindArrayLike):
		return m.hostArray(obj, path, depth, w)
	}
	return m.hostObject(obj, path, depth, w)
}

func (m *Marshaler) hostArray(obj *goja.Object, path string, depth int, w *hostWalk) (any, error) {
	n := obj.Get("length").ToInteger()
	if n < 0 {
		n = 0
	}
	if n > int64(m.maxLength) {
		return nil, newError(path, ErrTooLarge, fmt.Sprintf("length %d exceeds %d", n, m.maxLength))
	}
	out := make([]any, 0, n)
	for i := int64(0); i < n; i++ {
		item, err := m.toHost(obj.Get(strconv.FormatInt(i, 10)), path+"["+strconv.FormatInt(i, 10)+"]", depth+1, w)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *Marshaler) hostObject(obj *goja.Object, path string, depth int, w *hostWalk) (any, error) {
	keys := obj.Keys()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		item, err := m.toHost(obj.Get(key), path+"."+key, depth+1, w)
		if err != nil {
			return nil, err
		}
		out[key] = item
	}
	return out, nil
}

func (m *Marshaler) unbox(obj *goja.Object, path string, depth int, w *hostWalk) (any, error) {
	valueOf, ok := goja.AssertFunction(obj.Get("valueOf"))
	if !ok {
		return nil, newError(path, ErrUnsupported, "boxed value without valueOf")
	}
	prim, err := valueOf(obj)
	if err != nil {
		return nil, newError(path, ErrUnsupported, err.Error())
	}
	if _, isObj := prim.(*goja.Object); isObj {
		return nil, newError(path, ErrUnsupported, "valueOf returned an object")
	}
	return m.toHost(prim, path, depth, w)
}

// hostNumber keeps integral values as int64 and everything else as float64.
func hostNumber(v goja.Value) any {
	switch n := v.Export().(type) {
	case int64:
		return n
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 && !(n == 0 && math.Signbit(n)) {
			return int64(n)
		}
		return n
	}
	return v.ToFloat()
}

// hostString rejects strings carrying unpaired UTF-16 surrogates, which the
// runtime would otherwise hand out as U+FFFD.
func (m *Marshaler) hostString(v goja.Value, path string) (any, error) {
	s := v.String()
	if !strings.ContainsRune(s, utf8.RuneError) {
		return s, nil
	}
	ok, err := m.isWellFormed(v)
	if err != nil {
		return nil, newError(path, ErrEncoding, err.Error())
	}
	if !ok {
		return nil, newError(path, ErrEncoding, "unpaired surrogate")
	}
	return s, nil
}

var (
	wellFormedOnce sync.Once
	wellFormedPrg  *goja.Program
)

const wellFormedSrc = `(function (s) {
	for (var i = 0; i < s.length; i++) {
		var c = s.charCodeAt(i);
		if (c >= 0xD800 && c <= 0xDBFF) {
			var n = s.charCodeAt(i + 1);
			if (n >= 0xDC00 && n <= 0xDFFF) {
				i++;
				continue;
			}
			return false;
		}
		if (c >= 0xDC00 && c <= 0xDFFF) {
			return false;
		}
	}
	return true;
})`

func (m *Marshaler) isWellFormed(v goja.Value) (bool, error) {
	if m.wellFormed == nil {
		wellFormedOnce.Do(func() {
			wellFormedPrg = goja.MustCompile("well_formed.js", wellFormedSrc, true)
		})
		fnVal, err := m.vm.RunProgram(wellFormedPrg)
		if err != nil {
			return false, err
		}
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			return false, fmt.Errorf("well-formed check is not callable")
		}
		m.wellFormed = fn
	}
	res, err := m.wellFormed(goja.Undefined(), v)
	if err != nil {
		return false, err
	}
	return res.ToBoolean(), nil
}

// ============================================================================
// Host -> Script
// ============================================================================

// hostRef identifies a host reference. The type keeps a struct apart from
// its first field, which shares its address.
type hostRef struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

type scriptWalk struct {
	walk
	seen map[hostRef]struct{}
}

// enter records a reference on the current path.
func (w *scriptWalk) enter(ref hostRef, path string) (leave func(), err error) {
	if _, cyclic := w.seen[ref]; cyclic {
		return nil, newError(path, ErrCycle, "")
	}
	w.seen[ref] = struct{}{}
	return func() { delete(w.seen, ref) }, nil
}

// ToScript converts a Go value into a script value.
func (m *Marshaler) ToScript(v any) (goja.Value, error) {
	return m.ToScriptContext(context.Background(), v)
}

// ToScriptContext is ToScript with a conversion that stops once ctx is done.
func (m *Marshaler) ToScriptContext(ctx context.Context, v any) (goja.Value, error) {
	w := &scriptWalk{walk: walk{ctx: ctx}, seen: make(map[hostRef]struct{})}
	return m.toScript(v, "$", 0, w)
}

func (m *Marshaler) toScript(v any, path string, depth int, w *scriptWalk) (goja.Value, error) {
	if depth > m.maxDepth {
		return nil, newError(path, ErrDepth, strconv.Itoa(m.maxDepth))
	}
	if err := w.tick(path); err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case nil:
		return goja.Null(), nil
	case goja.Value:
		return m.own(x, path)
	case ScriptValuer:
		val, err := x.ScriptValue(m.vm)
		if err != nil {
			return nil, newError(path, ErrUnsupported, err.Error())
		}
		return val, nil
	case bool:
		return m.vm.ToValue(x), nil
	case string:
		if !utf8.ValidString(x) {
			return nil, newError(path, ErrEncoding, "invalid UTF-8")
		}
		return m.vm.ToValue(x), nil
	case int:
		return m.vm.ToValue(int64(x)), nil
	case int8:
		return m.vm.ToValue(int64(x)), nil
	case int16:
		return m.vm.ToValue(int64(x)), nil
	case int32:
		return m.vm.ToValue(int64(x)), nil
	case int64:
		return m.vm.ToValue(x), nil
	case uint:
		return m.unsigned(uint64(x)), nil
	case uint8:
		return m.vm.ToValue(int64(x)), nil
	case uint16:
		return m.vm.ToValue(int64(x)), nil
	case uint32:
		return m.vm.ToValue(int64(x)), nil
	case uint64:
		return m.unsigned(x), nil
	case float32:
		return m.vm.ToValue(float64(x)), nil
	case float64:
		return m.vm.ToValue(x), nil
	case *big.Int:
		if x.IsInt64() {
			return m.vm.ToValue(x.Int64()), nil
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return m.vm.ToValue(f), nil
	case []byte:
		return m.vm.ToValue(m.vm.NewArrayBuffer(append([]byte(nil), x...))), nil
	case time.Time:
		return m.scriptDate(x, path)
	case func(goja.FunctionCall) goja.Value:
		return m.vm.ToValue(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return m.scriptStruct(v, path, depth, w)
		}
		leave, err := w.enter(hostRef{typ: rv.Type(), ptr: rv.Pointer()}, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return m.toScript(rv.Elem().Interface(), path, depth, w)
	case reflect.Interface:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		return m.toScript(rv.Elem().Interface(), path, depth, w)
	case reflect.Slice:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		leave, err := w.enter(hostRef{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return m.scriptArray(rv, path, depth, w)
	case reflect.Array:
		return m.scriptArray(rv, path, depth, w)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, newError(path, ErrUnsupported, "map key "+rv.Type().Key().String())
		}
		if rv.IsNil() {
			return goja.Null(), nil
		}
		leave, err := w.enter(hostRef{typ: rv.Type(), ptr: rv.Pointer()}, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return m.scriptObject(rv, path, depth, w)
	case reflect.Struct:
		return m.scriptStruct(v, path, depth, w)
	case reflect.String:
		return m.toScript(rv.String(), path, depth, w)
	case reflect.Bool:
		return m.vm.ToValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return m.vm.ToValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return m.unsigned(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return m.vm.ToValue(rv.Float()), nil
	}
	return nil, newError(path, ErrUnsupported, fmt.Sprintf("%T", v))
}

func (m *Marshaler) unsigned(u uint64) goja.Value {
	if u > math.MaxInt64 {
		return m.vm.ToValue(float64(u))
	}
	return m.vm.ToValue(int64(u))
}

// own hands back a script value, refusing objects of another runtime.
func (m *Marshaler) own(v goja.Value, path string) (val goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = nil, newError(path, ErrUnsupported, "value belongs to another runtime")
		}
	}()
	return m.vm.ToValue(v), nil
}

func (m *Marshaler) scriptArray(rv reflect.Value, path string, depth int, w *scriptWalk) (goja.Value, error) {
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := m.toScript(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]", depth+1, w)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return m.vm.NewArray(items...), nil
}

func (m *Marshaler) scriptObject(rv reflect.Value, path string, depth int, w *scriptWalk) (goja.Value, error) {
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	obj := m.vm.NewObject()
	for _, key := range keys {
		if !utf8.ValidString(key) {
			return nil, newError(path, ErrEncoding, "invalid UTF-8 key")
		}
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		item, err := m.toScript(val.Interface(), path+"."+key, depth+1, w)
		if err != nil {
			return nil, err
		}
		if err := obj.Set(key, item); err != nil {
			return nil, newError(path+"."+key, ErrUnsupported, err.Error())
		}
	}
	return obj, nil
}

// scriptStruct goes through the struct's JSON form so field tags apply.
func (m *Marshaler) scriptStruct(v any, path string, depth int, w *scriptWalk) (goja.Value, error) {
	if err := m.structRefs(reflect.ValueOf(v), path, depth, w); err != nil {
		return nil, err
	}
	data, err := structCodec.Marshal(v)
	if err != nil {
		return nil, newError(path, ErrUnsupported, err.Error())
	}
	var generic any
	if err := structCodec.Unmarshal(data, &generic); err != nil {
		return nil, newError(path, ErrUnsupported, err.Error())
	}
	return m.toScript(generic, path, depth, w)
}

// structRefs walks what the JSON encoder would visit and reports reference
// cycles and excessive nesting before encoding starts.
func (m *Marshaler) structRefs(rv reflect.Value, path string, depth int, w *scriptWalk) error {
	if depth > m.maxDepth {
		return newError(path, ErrDepth, strconv.Itoa(m.maxDepth))
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ref := hostRef{typ: rv.Type(), ptr: rv.Pointer()}
		if rv.Kind() == reflect.Slice {
			ref.n = rv.Len()
		}
		leave, err := w.enter(ref, path)
		if err != nil {
			return err
		}
		defer leave()
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return m.structRefs(rv.Elem(), path, depth, w)
	case reflect.Struct:
		t := rv.Type()
		if t == typeTime {
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if (!f.IsExported() && !f.Anonymous) || f.Tag.Get("json") == "-" {
				continue
			}
			if err := m.structRefs(rv.Field(i), path+"."+f.Name, depth+1, w); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := m.structRefs(rv.Index(i), path+"["+strconv.Itoa(i)+"]", depth+1, w); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if err := m.structRefs(iter.Value(), path+"."+fmt.Sprint(iter.Key().Interface()), depth+1, w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Marshaler) scriptDate(t time.Time, path string) (goja.Value, error) {
	ctor := m.classifier.in.date
	if ctor == nil {
		ctor = m.vm.Get("Date")
	}
	obj, err := m.vm.New(ctor, m.vm.ToValue(t.UnixMilli()))
	if err != nil {
		return nil, newError(path, ErrUnsupported, err.Error())
	}
	return obj, nil
}
