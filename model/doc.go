// Package model defines the collaborator contract for language-model backed
// nodes and judges: a normalized Request/Response pair and the minimal Model
// interface, plus a deterministic MockModel for tests and examples. Provider
// adapters live in the anthropic and openai sub-packages.
//
// The kernel never imports this package; models reach a graph only through
// the node contract (see node.ModelNode). Retry, backoff and tool-call loops
// are deliberately left to callers or richer collaborators.
package model
