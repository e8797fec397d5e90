// Package logging provides a minimal logging interface and adapters for GraphFlow.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that graph containers and nodes use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - GraphFlowLogger with contextual helpers for graphs, runs and waves
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelDebug, "json", false)
//	g := graph.New("pipeline", func(o *graph.Options) { o.Logger = logger })
package logging
