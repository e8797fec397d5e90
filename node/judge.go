package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/model"
)

// ModelJudgeOptions configures a ModelJudge.
type ModelJudgeOptions struct {
	// PromptKey names the message field presented to the model. Defaults to
	// "completion", the ModelNode output field.
	PromptKey string
}

// ModelJudge answers switch-routing and loop-termination questions with a
// language model. The model is instructed to reply with a single yes/no
// verdict; the judge reports true when the reply starts with "yes".
// It satisfies core.Judge and can be bound anywhere a predicate is
// accepted.
type ModelJudge struct {
	model        model.Model
	instructions string
	opts         ModelJudgeOptions
}

// NewModelJudge creates a judge asking the given question about each
// message, e.g. "Does this text mention a competitor?".
func NewModelJudge(m model.Model, question string, optFns ...func(o *ModelJudgeOptions)) *ModelJudge {
	opts := ModelJudgeOptions{PromptKey: "completion"}
	for _, fn := range optFns {
		fn(&opts)
	}

	instructions := fmt.Sprintf(
		"You are a strict classifier. Question: %s Answer with a single word, yes or no.",
		question,
	)

	return &ModelJudge{model: m, instructions: instructions, opts: opts}
}

// Judge implements core.Judge.
func (j *ModelJudge) Judge(ctx context.Context, msg core.Message, _ *core.AttributeScope) (bool, error) {
	v, ok := msg[j.opts.PromptKey]
	if !ok {
		return false, &core.MissingKeyError{Subject: "model judge", Keys: []string{j.opts.PromptKey}}
	}

	resp, err := j.model.Generate(ctx, model.Request{
		Instructions: j.instructions,
		Messages:     []model.ChatMessage{{Role: "user", Text: fmt.Sprint(v)}},
	})
	if err != nil {
		return false, err
	}

	verdict := strings.ToLower(strings.TrimSpace(resp.Text))

	return strings.HasPrefix(verdict, "yes"), nil
}
