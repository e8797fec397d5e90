package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEdgeEmpty is returned by Edge.Receive when the slot holds no message.
var ErrEdgeEmpty = errors.New("receive on empty edge")

// StructuralError reports an invalid graph shape detected during
// orchestration or build: a cycle outside a sanctioned controller loop, an
// isolated node, a cross-graph edge, a duplicate predicate binding or a
// mutation of an already-built graph. Structural errors are fatal and never
// retried.
type StructuralError struct {
	Graph  string // owning graph, may be empty when not yet attached
	Reason string
}

// NewStructuralError creates a StructuralError with a formatted reason.
func NewStructuralError(graph, format string, args ...any) *StructuralError {
	return &StructuralError{Graph: graph, Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if e.Graph == "" {
		return fmt.Sprintf("structural error: %s", e.Reason)
	}
	return fmt.Sprintf("structural error in graph %q: %s", e.Graph, e.Reason)
}

// CongestionError reports a send onto an edge whose slot has not been
// drained. It indicates a scheduling invariant violation, not a transient
// condition, and is never retried.
type CongestionError struct {
	Edge string
}

// Error implements the error interface.
func (e *CongestionError) Error() string {
	return fmt.Sprintf("congestion on edge %q: send before previous message was received", e.Edge)
}

// MissingKeyError reports a key-contract violation during attribute
// projection, edge dispatch or input aggregation. Subject identifies the
// offending node or edge.
type MissingKeyError struct {
	Subject string
	Keys    []string
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing keys [%s] on %q", strings.Join(e.Keys, ", "), e.Subject)
}

// ForwardError wraps any error raised by a node's forward step. The kernel
// applies no retry; retry policy belongs to the collaborator implementing
// the node.
type ForwardError struct {
	Node string
	Err  error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	return fmt.Sprintf("node %q: forward failed: %v", e.Node, e.Err)
}

// Unwrap returns the underlying forward failure.
func (e *ForwardError) Unwrap() error { return e.Err }
