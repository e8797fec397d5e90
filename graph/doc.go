// Package graph provides the GraphFlow containers and scheduler: BaseGraph
// with build-time structural validation, the wave-based readiness executor,
// the acyclic Graph (nestable as a node inside another graph) and the
// bounded-cycle Loop with its internal controller and terminate nodes.
//
// A graph is frozen by Build and then executed repeatedly through Invoke.
// Each invocation seeds the entry port, runs every currently-ready node as
// one concurrent wave, commits attribute write-backs serially after the
// wave, and repeats until the exit port is satisfied or no node can become
// ready. The latter is a normal terminal state, reported through
// Outcome.Complete rather than an error.
package graph
