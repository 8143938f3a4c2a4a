/*
Package engine holds the process-wide script engine state shared by every
execution context.

# Lifecycle

The engine is reference counted. The first Acquire performs the real
initialization (compiling the built-in helper programs that every context
installs); later callers only bump the live-instance count.

	eng := engine.Default()
	if err := eng.Acquire(); err != nil {
		return err
	}
	defer eng.Release()

# Teardown policy

Release never disposes an initialized engine, even when the count returns to
zero. Hosts create and destroy contexts in overlapping and nested lifetimes,
and disposing shared engine state while any context still references it is
unrecoverable. Keeping the compiled programs alive for the rest of the process
is the intended trade-off.
*/
package engine
