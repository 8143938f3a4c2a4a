// Package server wires the context manager, metrics and middleware into a
// gin router and runs it.
//
// Server lifecycle:
//  1. Load configuration from the environment
//  2. Initialize logger (production or development)
//  3. Build the shared engine and the context manager
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown destroys every live context
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(context.Background())
package server
