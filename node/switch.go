package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/graphflow/core"
)

// Switch conditionally fans its forward output out across a subset of its
// out-edges. Every bound predicate is evaluated against the same aggregated
// message and attributes; each true predicate sends on its edge, so several
// simultaneously-true predicates are a legitimate broadcast, not an
// exclusive choice. Edges with no binding never fire.
//
// When every predicate is false no out-edge fires that round. If every
// remaining path to the exit depended on this switch, the graph's ready set
// drains and the invocation terminates early; bind a default edge via
// BindDefault when exhaustive coverage is required.
type Switch struct {
	core.BaseNode

	mu          sync.Mutex
	bindings    []binding
	bound       map[*core.Edge]bool
	defaultEdge *core.Edge
}

type binding struct {
	edge  *core.Edge
	pred  core.Predicate
	judge core.Judge
}

// NewSwitch creates a switch with no bindings.
func NewSwitch(name string) *Switch {
	return &Switch{BaseNode: core.NewBaseNode(name), bound: map[*core.Edge]bool{}}
}

// Forward implements core.Node as a pass-through; the routing decision
// happens in Dispatch against the same aggregated message.
func (s *Switch) Forward(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
	return in, nil
}

// Bind registers a predicate for one of the switch's out-edges. At most one
// binding per edge is allowed; a duplicate is a structural error.
func (s *Switch) Bind(edge *core.Edge, pred core.Predicate) error {
	if pred == nil {
		return core.NewStructuralError("", "switch %q: nil predicate", s.Name())
	}
	return s.bind(binding{edge: edge, pred: pred})
}

// BindJudge registers an external judge collaborator for one of the
// switch's out-edges, typically a model-backed semantic judge. A judge
// failure aborts dispatch.
func (s *Switch) BindJudge(edge *core.Edge, judge core.Judge) error {
	if judge == nil {
		return core.NewStructuralError("", "switch %q: nil judge", s.Name())
	}
	return s.bind(binding{edge: edge, judge: judge})
}

// BindDefault registers a fallback edge that fires only when no predicate
// fired, covering the all-false hazard for callers that need exhaustive
// routing.
func (s *Switch) BindDefault(edge *core.Edge) error {
	if err := s.checkEdge(edge); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaultEdge != nil {
		return core.NewStructuralError("", "switch %q: default edge already bound", s.Name())
	}
	if s.bound[edge] {
		return core.NewStructuralError("", "switch %q: edge %q already bound", s.Name(), edge.Name())
	}
	s.defaultEdge = edge
	s.bound[edge] = true

	return nil
}

func (s *Switch) bind(b binding) error {
	if err := s.checkEdge(b.edge); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound[b.edge] {
		return core.NewStructuralError("", "switch %q: edge %q already bound", s.Name(), b.edge.Name())
	}
	s.bindings = append(s.bindings, b)
	s.bound[b.edge] = true

	return nil
}

func (s *Switch) checkEdge(edge *core.Edge) error {
	if edge == nil {
		return core.NewStructuralError("", "switch %q: nil edge", s.Name())
	}
	if edge.Sender().Base() != s.Base() {
		return core.NewStructuralError("", "switch %q: edge %q is not one of its out-edges", s.Name(), edge.Name())
	}
	return nil
}

// Dispatch implements core.Dispatcher. Bindings are evaluated in
// registration order against the same message; every true binding sends on
// its edge, making the receiver eligible for the next wave.
func (s *Switch) Dispatch(ctx context.Context, out core.Message, attrs *core.AttributeScope) error {
	s.mu.Lock()
	bindings := make([]binding, len(s.bindings))
	copy(bindings, s.bindings)
	defaultEdge := s.defaultEdge
	s.mu.Unlock()

	fired := false
	for _, b := range bindings {
		if !b.edge.IsOpen() {
			continue
		}

		match, err := s.evaluate(ctx, b, out, attrs)
		if err != nil {
			return err
		}
		if !match {
			continue
		}

		if err := b.edge.Send(out); err != nil {
			return err
		}
		fired = true
	}

	if !fired && defaultEdge != nil && defaultEdge.IsOpen() {
		return defaultEdge.Send(out)
	}

	return nil
}

func (s *Switch) evaluate(ctx context.Context, b binding, out core.Message, attrs *core.AttributeScope) (bool, error) {
	if b.judge != nil {
		match, err := b.judge.Judge(ctx, out, attrs)
		if err != nil {
			return false, fmt.Errorf("switch %q: judge on edge %q: %w", s.Name(), b.edge.Name(), err)
		}
		return match, nil
	}
	return b.pred(out, attrs), nil
}
