package core

// Gate is a two-state flow-control flag attached to every node and edge.
// A closed node is excluded from readiness computation; a closed edge
// suppresses message delivery without failing the sender.
type Gate int32

const (
	// GateOpen allows scheduling (nodes) and delivery (edges).
	GateOpen Gate = iota
	// GateClosed excludes a node from readiness or suppresses edge delivery.
	GateClosed
)

// String returns the string representation of the gate state.
func (g Gate) String() string {
	switch g {
	case GateOpen:
		return "open"
	case GateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
