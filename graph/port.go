package graph

import (
	"context"

	"github.com/hupe1980/graphflow/core"
)

// port is a synthetic member node (entry, exit, controller, terminate).
// Ports are driven by the container rather than scheduled, so Forward is a
// plain pass-through.
type port struct {
	core.BaseNode
}

func newPort(name string) *port {
	return &port{BaseNode: core.NewBaseNode(name)}
}

// Forward implements core.Node.
func (p *port) Forward(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
	return in, nil
}
