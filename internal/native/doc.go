/*
Package native installs host capabilities into a script runtime's global
object.

# Registry

Registry resolves dotted names ("console.log", "host.fs.read") into nested
global paths, creating intermediate objects as needed. Registering the same
name twice through one Registry is a no-op, so repeated installation never
produces duplicate bindings.

# Console

Console provides console.assert/log/debug/trace/info/dir (stdout channel) and
console.warn/error/exception (stderr channel). Each call is formatted into one
line: arguments joined with a single space, objects rendered through
JSON.stringify. Lines either go straight to the configured writer or, when
messages are persisted, to a Sink owned by the execution context.

# Event loop hooks

RegisterEventLoop adds queueMicrotask on top of the timers that the goja_nodejs
event loop already provides (setTimeout, setInterval, setImmediate and their
clear* counterparts).
*/
package native
