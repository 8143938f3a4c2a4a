// Package main runs the scriptbridge HTTP server.
//
// The server keeps a set of isolated script execution contexts and exposes
// them over REST: create a context, evaluate code in it, read and write
// globals by dotted path, dispatch functions through the event loop and
// inspect per-context statistics and captured console output.
//
// Configuration:
//   - Environment variables (PORT, HOST, LOG_LEVEL, LOG_DEV, RATE_LIMIT_*,
//     BRIDGE_*)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -options bridge.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
