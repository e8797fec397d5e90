package model

import (
	"context"
	"fmt"
)

// ChatMessage is one turn of normalized model input. Role is one of
// "system", "user" or "assistant".
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized model input produced by a node.
type Request struct {
	// Instructions is the system prompt, prepended to any system messages.
	Instructions string        `json:"instructions,omitempty"`
	Messages     []ChatMessage `json:"messages"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed model output.
type Response struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"` // "stop", "length", etc.
	Usage        *Usage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface a model collaborator must satisfy.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It answers from a canned prompt→completion table, falling back to a
// deterministic echo.
type MockModel struct {
	info      Info
	responses map[string]string
	err       error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) { m.err = err }

// Generate implements Model against the canned response table, matching on
// the last user message.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var prompt string
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			prompt = msg.Text
		}
	}
	if prompt == "" {
		return nil, fmt.Errorf("no user message provided")
	}

	text := m.responses[prompt]
	if text == "" {
		text = fmt.Sprintf("Mock response to: %s", prompt)
	}

	return &Response{Text: text, FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
