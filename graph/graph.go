package graph

import (
	"context"

	"github.com/hupe1980/graphflow/core"
)

// Graph is the ordinary acyclic container. It satisfies core.Node, so a
// built graph can be added as a member of another graph; its Forward runs
// the internal wave scheduler against the aggregated input.
type Graph struct {
	BaseGraph
}

// New creates an empty acyclic graph.
func New(name string, optFns ...func(o *Options)) *Graph {
	g := &Graph{BaseGraph: newBaseGraph(name, optFns...)}
	g.initPorts()
	return g
}

// Forward implements core.Node by running the sub-scheduler. When the
// nested invocation terminates early the partial exit aggregation is
// returned as the node output; the hosting graph decides what to make of
// missing fields through its own edge contracts.
func (g *Graph) Forward(ctx context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
	outcome, err := g.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}
	return outcome.Output, nil
}
