package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/model"
)

func TestModelNode_Forward(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("What is Go?", "A programming language.")
	n := NewModelNode("answerer", m)

	out, err := n.Forward(context.Background(), core.Message{"prompt": "What is Go?"}, core.NewAttributeScope())
	require.NoError(t, err)
	assert.Equal(t, core.Message{"completion": "A programming language."}, out)
}

func TestModelNode_CustomKeys(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("ping", "pong")
	n := NewModelNode("answerer", m, func(o *ModelNodeOptions) {
		o.PromptKey = "question"
		o.OutputKey = "answer"
	})

	out, err := n.Forward(context.Background(), core.Message{"question": "ping"}, core.NewAttributeScope())
	require.NoError(t, err)
	assert.Equal(t, core.Message{"answer": "pong"}, out)
}

func TestModelNode_MissingPrompt(t *testing.T) {
	n := NewModelNode("answerer", model.NewMockModel("mock"))

	_, err := n.Forward(context.Background(), core.Message{"other": 1}, core.NewAttributeScope())
	var missing *core.MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"prompt"}, missing.Keys)
}

func TestModelNode_ProviderErrorPropagates(t *testing.T) {
	m := model.NewMockModel("mock")
	unavailable := errors.New("provider unavailable")
	m.FailWith(unavailable)
	n := NewModelNode("answerer", m)

	_, err := n.Forward(context.Background(), core.Message{"prompt": "hello"}, core.NewAttributeScope())
	assert.ErrorIs(t, err, unavailable)
}

func TestModelJudge_Verdicts(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{name: "yes", reply: "yes", want: true},
		{name: "yes with trailing text", reply: "Yes, it does.", want: true},
		{name: "no", reply: "no", want: false},
		{name: "unparseable", reply: "maybe", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.NewMockModel("mock")
			m.AddResponse("the text under review", tt.reply)
			j := NewModelJudge(m, "Does this text mention a competitor?")

			got, err := j.Judge(context.Background(), core.Message{"completion": "the text under review"}, core.NewAttributeScope())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelJudge_MissingKey(t *testing.T) {
	j := NewModelJudge(model.NewMockModel("mock"), "Is it done?")

	_, err := j.Judge(context.Background(), core.Message{}, core.NewAttributeScope())
	var missing *core.MissingKeyError
	assert.ErrorAs(t, err, &missing)
}
