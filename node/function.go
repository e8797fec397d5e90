package node

import (
	"context"
	"fmt"

	"github.com/hupe1980/graphflow/core"
)

// ForwardFunc is the signature of a user-defined forward step.
type ForwardFunc func(ctx context.Context, in core.Message, attrs *core.AttributeScope) (core.Message, error)

// FunctionNode wraps a plain function as a graph member. It is the simplest
// way to put custom logic into a graph without defining a new type.
type FunctionNode struct {
	core.BaseNode
	fn ForwardFunc
}

// NewFunctionNode creates a function-backed node.
func NewFunctionNode(name string, fn ForwardFunc) *FunctionNode {
	return &FunctionNode{BaseNode: core.NewBaseNode(name), fn: fn}
}

// Forward implements core.Node.
func (n *FunctionNode) Forward(ctx context.Context, in core.Message, attrs *core.AttributeScope) (core.Message, error) {
	if n.fn == nil {
		return nil, fmt.Errorf("function node %q has no forward function", n.Name())
	}
	return n.fn(ctx, in, attrs)
}
