/*
Package bridge runs host operations against isolated script execution
contexts.

A Context owns one goja runtime driven by a goja_nodejs event loop. Every
operation that touches the runtime (Get, Set, Exists, TypeOf, InstanceOf,
TypeFlags, Eval, DispatchFunction, RunGarbageCollection and Function.Call)
goes through the same path:

 1. enter the isolate scope: the per-context mutex, rejecting destroyed
    contexts with ErrDestroyed
 2. enter the operation scope: arm the timeout watchdog and the
    context.Context cancellation hook, recover engine panics
 3. install natives if this is the first operation (console, event-loop
    hooks, inlined helpers)
 4. run the body, timing it when statistics or a Recorder want it
 5. leave both scopes in reverse order

Statistics and captured messages are readable at any time without waiting
for a running script. Resetting either replaces the buffer; references
obtained earlier keep their contents.

Contexts are safe for use by multiple goroutines, one operation at a time.
Methods must not be called from inside native callbacks running on the same
Context.
*/
package bridge
