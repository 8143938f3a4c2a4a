package native

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Output channels.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// Sink receives console lines instead of the output writers.
type Sink interface {
	Append(channel, msg string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(channel, msg string)

// Append calls f.
func (f SinkFunc) Append(channel, msg string) {
	f(channel, msg)
}

// consoleMethods maps console.* names to their channel.
var consoleMethods = []struct {
	name    string
	channel string
}{
	{"console.assert", Stdout},
	{"console.log", Stdout},
	{"console.debug", Stdout},
	{"console.trace", Stdout},
	{"console.info", Stdout},
	{"console.warn", Stderr},
	{"console.error", Stderr},
	{"console.exception", Stderr},
	{"console.dir", Stdout},
}

// Console formats script console calls and routes them either to writers or
// to a Sink.
type Console struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	sink   Sink
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithWriters overrides os.Stdout and os.Stderr.
func WithWriters(stdout, stderr io.Writer) ConsoleOption {
	return func(c *Console) {
		if stdout != nil {
			c.stdout = stdout
		}
		if stderr != nil {
			c.stderr = stderr
		}
	}
}

// WithSink persists lines to sink instead of writing them.
func WithSink(sink Sink) ConsoleOption {
	return func(c *Console) {
		c.sink = sink
	}
}

// NewConsole creates a console writing to the process streams by default.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Output emits one message on channel and returns its length in bytes.
// Unknown channels are treated as stdout.
func (c *Console) Output(channel, msg string) int {
	if channel != Stderr {
		channel = Stdout
	}
	if c.sink != nil {
		c.sink.Append(channel, msg)
		return len(msg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.stdout
	if channel == Stderr {
		w = c.stderr
	}
	fmt.Fprintln(w, msg)
	flush(w)
	return len(msg)
}

// Bindings returns the console.* functions for vm.
func (c *Console) Bindings(vm *goja.Runtime) []Binding {
	stringify := jsonStringify(vm)
	bindings := make([]Binding, 0, len(consoleMethods))
	for _, m := range consoleMethods {
		channel := m.channel
		bindings = append(bindings, Binding{
			Name: m.name,
			Fn: func(call goja.FunctionCall) goja.Value {
				c.Output(channel, Format(call.Arguments, stringify))
				return goja.Undefined()
			},
		})
	}
	return bindings
}

// Format joins args with a single space. Objects are rendered through
// stringify when it yields a string, other values through their string form.
func Format(args []goja.Value, stringify goja.Callable) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(formatValue(arg, stringify))
	}
	return sb.String()
}

func formatValue(v goja.Value, stringify goja.Callable) string {
	if v == nil {
		return "undefined"
	}
	obj, ok := v.(*goja.Object)
	if !ok || stringify == nil {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return v.String()
	}
	out, err := stringify(goja.Undefined(), obj)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return v.String()
	}
	return out.String()
}

func jsonStringify(vm *goja.Runtime) goja.Callable {
	json, ok := vm.Get("JSON").(*goja.Object)
	if !ok {
		return nil
	}
	fn, _ := goja.AssertFunction(json.Get("stringify"))
	return fn
}

// flush drains buffered writers; os.File writes are already unbuffered.
func flush(w io.Writer) {
	if f, ok := w.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}
