package core

import (
	"fmt"
	"sync"
)

// EdgeEventKind discriminates edge observability events.
type EdgeEventKind int

const (
	// EdgeEventSend is raised after a message is buffered on an edge.
	EdgeEventSend EdgeEventKind = iota
	// EdgeEventReceive is raised after a message is drained from an edge.
	EdgeEventReceive
)

// String returns the string representation of the event kind.
func (k EdgeEventKind) String() string {
	if k == EdgeEventSend {
		return "send"
	}
	return "receive"
}

// EdgeEvent is emitted to the edge observer on every send and receive.
type EdgeEvent struct {
	Edge    *Edge
	Kind    EdgeEventKind
	Message Message
}

// Edge is a directed, single-slot message channel between exactly two nodes
// owned by the same graph. The slot is the backpressure mechanism, not a
// buffer: a second send before a receive fails with a CongestionError rather
// than queueing. Edges are safe for concurrent use.
type Edge struct {
	sender   Node
	receiver Node
	keys     KeySet

	mu       sync.Mutex
	slot     Message // nil when empty
	gate     Gate
	observer func(EdgeEvent)
}

// NewEdge creates an open edge between sender and receiver carrying the
// given key contract. A nil KeySet imposes no contract and passes messages
// through unprojected. Graph containers are responsible for the eager
// same-owner check before wiring the edge in.
func NewEdge(sender, receiver Node, keys KeySet) *Edge {
	return &Edge{sender: sender, receiver: receiver, keys: keys, gate: GateOpen}
}

// Sender returns the exclusive upstream owner of the edge.
func (e *Edge) Sender() Node { return e.sender }

// Receiver returns the exclusive downstream owner of the edge.
func (e *Edge) Receiver() Node { return e.receiver }

// Keys returns the transport contract, nil when unconstrained.
func (e *Edge) Keys() KeySet { return e.keys }

// Name identifies the edge in logs and errors.
func (e *Edge) Name() string {
	return fmt.Sprintf("%s->%s", e.sender.Name(), e.receiver.Name())
}

// Open opens the edge gate.
func (e *Edge) Open() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = GateOpen
}

// Close closes the edge gate, suppressing delivery.
func (e *Edge) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = GateClosed
}

// IsOpen reports whether the edge gate is open.
func (e *Edge) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate == GateOpen
}

// Congested reports whether the slot holds an undelivered message.
func (e *Edge) Congested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slot != nil
}

// SetObserver installs a callback invoked after every send and receive.
// Installed by the owning graph to surface edge traffic to logging and
// hooks. Not safe to call while the edge is in use.
func (e *Edge) SetObserver(fn func(EdgeEvent)) { e.observer = fn }

// Send projects msg onto the edge's key contract and fills the slot.
// It fails with a MissingKeyError when the message lacks a contract key and
// with a CongestionError when the slot has not been drained.
func (e *Edge) Send(msg Message) error {
	if e.keys != nil {
		if missing := msg.MissingKeys(e.keys); len(missing) > 0 {
			return &MissingKeyError{Subject: e.Name(), Keys: missing}
		}
	}
	projected := msg.Project(e.keys)

	e.mu.Lock()
	if e.slot != nil {
		e.mu.Unlock()
		return &CongestionError{Edge: e.Name()}
	}
	e.slot = projected
	e.mu.Unlock()

	e.notify(EdgeEventSend, projected)

	return nil
}

// Receive drains the slot. It fails with ErrEdgeEmpty when no message is
// buffered; a receive always empties the slot.
func (e *Edge) Receive() (Message, error) {
	e.mu.Lock()
	msg := e.slot
	e.slot = nil
	e.mu.Unlock()

	if msg == nil {
		return nil, fmt.Errorf("edge %q: %w", e.Name(), ErrEdgeEmpty)
	}

	e.notify(EdgeEventReceive, msg)

	return msg, nil
}

// Clear drops any buffered message without raising an event. Used by graph
// containers to reset transport state between invocations.
func (e *Edge) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slot = nil
}

func (e *Edge) notify(kind EdgeEventKind, msg Message) {
	if e.observer != nil {
		e.observer(EdgeEvent{Edge: e, Kind: kind, Message: msg})
	}
}
