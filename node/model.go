package node

import (
	"context"
	"fmt"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/model"
)

// ModelNodeOptions configures a ModelNode.
type ModelNodeOptions struct {
	// Instructions is the system prompt sent with every request.
	Instructions string

	// PromptKey names the input field holding the prompt. Defaults to "prompt".
	PromptKey string

	// OutputKey names the output field receiving the completion. Defaults
	// to "completion".
	OutputKey string
}

// ModelNode is a language-model backed graph member. It consumes a
// model.Model collaborator strictly through the node contract: the forward
// step reads the prompt field from the aggregated input, performs one
// generation call and emits the completion under the output field. It
// applies no retry; that policy belongs to the model collaborator.
type ModelNode struct {
	core.BaseNode
	model model.Model
	opts  ModelNodeOptions
}

// NewModelNode creates a model-backed node.
func NewModelNode(name string, m model.Model, optFns ...func(o *ModelNodeOptions)) *ModelNode {
	opts := ModelNodeOptions{
		PromptKey: "prompt",
		OutputKey: "completion",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelNode{BaseNode: core.NewBaseNode(name), model: m, opts: opts}
}

// Model returns the backing model collaborator.
func (n *ModelNode) Model() model.Model { return n.model }

// Forward implements core.Node with a single generation call. The forward
// step may block on the provider; the wave scheduler accounts for that.
func (n *ModelNode) Forward(ctx context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
	v, ok := in[n.opts.PromptKey]
	if !ok {
		return nil, &core.MissingKeyError{Subject: n.Name(), Keys: []string{n.opts.PromptKey}}
	}

	resp, err := n.model.Generate(ctx, model.Request{
		Instructions: n.opts.Instructions,
		Messages:     []model.ChatMessage{{Role: "user", Text: fmt.Sprint(v)}},
	})
	if err != nil {
		return nil, err
	}

	return core.Message{n.opts.OutputKey: resp.Text}, nil
}
