package core

import (
	"context"
	"sync"
)

// Node is the contract every computational unit in a graph implements:
// language-model backed agents, user-defined functions, switches and nested
// sub-graphs alike. The kernel provides gate, edge and attribute machinery
// through BaseNode; implementations supply the single required Forward
// operation and may override Build for one-time setup.
type Node interface {
	// Name returns the node's name, unique within its owning graph.
	Name() string

	// Build performs one-time setup before the first invocation. The kernel
	// calls it exactly once per graph build; BaseNode provides a no-op.
	Build(ctx context.Context) error

	// Forward maps the aggregated input message and the node's local
	// attribute scope to an output message. This is the only point of
	// customization; the kernel never bypasses it.
	Forward(ctx context.Context, in Message, attrs *AttributeScope) (Message, error)

	// Base exposes the kernel-managed node state.
	Base() *BaseNode
}

// Dispatcher is implemented by nodes that replace the default fan-out of
// the forward output across all open out-edges, such as conditional
// switches. The kernel checks for it after the forward step.
type Dispatcher interface {
	Dispatch(ctx context.Context, out Message, attrs *AttributeScope) error
}

// Predicate decides a routing or termination question from a message and an
// attribute scope. Used by switches and loop termination alike.
type Predicate func(msg Message, attrs *AttributeScope) bool

// Judge is the collaborator contract for externalized decisions, typically
// backed by a language model. It mirrors Predicate but may block and fail.
type Judge interface {
	Judge(ctx context.Context, msg Message, attrs *AttributeScope) (bool, error)
}

// BaseNode bundles the kernel-managed state shared by all node kinds:
// identity, ordered in/out edges, the local attribute scope, the gate and
// the pull/push projection specs. Embed it in concrete implementations and
// supply a Forward method to satisfy Node.
type BaseNode struct {
	name string

	mu       sync.Mutex
	inEdges  []*Edge
	outEdges []*Edge
	attrs    *AttributeScope
	gate     Gate
	pullSpec Projection
	pushSpec Projection
	owner    *BaseNode // identity of the owning graph's node
}

// NewBaseNode constructs a BaseNode with an open gate and ALL pull/push
// projections.
func NewBaseNode(name string) BaseNode {
	return BaseNode{
		name:     name,
		attrs:    NewAttributeScope(),
		gate:     GateOpen,
		pullSpec: AllKeys(),
		pushSpec: AllKeys(),
	}
}

// Name returns the node name.
func (b *BaseNode) Name() string { return b.name }

// Build is a no-op; override in implementations needing one-time setup.
func (b *BaseNode) Build(_ context.Context) error { return nil }

// Base returns the kernel-managed state. Promoted through embedding so
// every concrete node satisfies the accessor for free.
func (b *BaseNode) Base() *BaseNode { return b }

// Attributes returns the node's local attribute scope.
func (b *BaseNode) Attributes() *AttributeScope { return b.attrs }

// Open opens the node gate, making it eligible for readiness.
func (b *BaseNode) Open() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = GateOpen
}

// Close closes the node gate, excluding it from readiness.
func (b *BaseNode) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = GateClosed
}

// IsOpen reports whether the node gate is open.
func (b *BaseNode) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gate == GateOpen
}

// PullSpec returns the attribute copy-in specification.
func (b *BaseNode) PullSpec() Projection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pullSpec
}

// SetPullSpec sets the attribute copy-in specification.
func (b *BaseNode) SetPullSpec(spec Projection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pullSpec = spec
}

// PushSpec returns the attribute copy-out specification.
func (b *BaseNode) PushSpec() Projection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushSpec
}

// SetPushSpec sets the attribute copy-out specification.
func (b *BaseNode) SetPushSpec(spec Projection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushSpec = spec
}

// Owner returns the identity of the owning graph, nil before the node is
// added to one.
func (b *BaseNode) Owner() *BaseNode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// SetOwner records the owning graph's identity. Called by graph containers
// when the node is added.
func (b *BaseNode) SetOwner(owner *BaseNode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner = owner
}

// AttachIn appends an in-edge. Edge order is registration order and decides
// the last-writer-wins aggregation policy.
func (b *BaseNode) AttachIn(e *Edge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inEdges = append(b.inEdges, e)
}

// AttachOut appends an out-edge.
func (b *BaseNode) AttachOut(e *Edge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outEdges = append(b.outEdges, e)
}

// InEdges returns the in-edges in registration order.
func (b *BaseNode) InEdges() []*Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	edges := make([]*Edge, len(b.inEdges))
	copy(edges, b.inEdges)
	return edges
}

// OutEdges returns the out-edges in registration order.
func (b *BaseNode) OutEdges() []*Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	edges := make([]*Edge, len(b.outEdges))
	copy(edges, b.outEdges)
	return edges
}

// InputKeys returns the union of all in-edge key contracts.
func (b *BaseNode) InputKeys() KeySet {
	keys := KeySet{}
	for _, e := range b.InEdges() {
		keys = keys.Union(e.Keys())
	}
	return keys
}

// OutputKeys returns the union of all out-edge key contracts.
func (b *BaseNode) OutputKeys() KeySet {
	keys := KeySet{}
	for _, e := range b.OutEdges() {
		keys = keys.Union(e.Keys())
	}
	return keys
}

// Ready reports whether the node can execute this wave: the gate is open
// and either the node has no in-edges or every open in-edge holds a
// buffered message.
func (b *BaseNode) Ready() bool {
	if !b.IsOpen() {
		return false
	}
	for _, e := range b.InEdges() {
		if e.IsOpen() && !e.Congested() {
			return false
		}
	}
	return true
}
