// Package node provides the concrete node kinds shipped with GraphFlow:
// user-defined function nodes, the conditional fan-out Switch, and the
// model-backed ModelNode that consumes a model collaborator strictly through
// the node contract. All of them embed core.BaseNode and supply only a
// Forward (and, for Switch, a Dispatch) implementation.
package node
