// Package contexts keeps the live execution contexts of the server, keyed by
// id. Each request body's option bag is layered over the server defaults
// before the context is created.
package contexts
