// Package graphflow provides a high-level façade over the graph kernel
// (nodes, edges, attribute scopes and the wave scheduler) enabling rapid
// construction of message-passing workflows. Most applications interact
// with this package by:
//  1. Creating a Graph or Loop container (optionally supplying a logger and hooks)
//  2. Adding nodes (function, switch, model-backed, nested graphs) and wiring edges
//  3. Calling Build once, then Invoke repeatedly
//
// The façade re-exports the most common kernel types so simple workflows
// need a single import; advanced usage reaches into the core, graph, node
// and model packages directly.
package graphflow

import (
	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/graph"
	"github.com/hupe1980/graphflow/node"
)

// Common kernel types, re-exported for convenience.
type (
	// Message is the unit of exchange between nodes.
	Message = core.Message
	// KeySet is an edge transport contract or attribute projection spec.
	KeySet = core.KeySet
	// Predicate decides routing and termination questions.
	Predicate = core.Predicate
	// Outcome is the result of one graph invocation.
	Outcome = graph.Outcome
	// ForwardFunc is the signature of a user-defined forward step.
	ForwardFunc = node.ForwardFunc
)

// NewGraph creates an empty acyclic graph.
func NewGraph(name string, optFns ...func(o *graph.Options)) *graph.Graph {
	return graph.New(name, optFns...)
}

// NewLoop creates a bounded-cycle container with the given iteration limit.
func NewLoop(name string, maxIterations int, optFns ...func(o *graph.LoopOptions)) *graph.Loop {
	return graph.NewLoop(name, maxIterations, optFns...)
}

// NewFunctionNode creates a node backed by a plain function.
func NewFunctionNode(name string, fn node.ForwardFunc) *node.FunctionNode {
	return node.NewFunctionNode(name, fn)
}

// NewSwitch creates a conditional fan-out node.
func NewSwitch(name string) *node.Switch {
	return node.NewSwitch(name)
}
