package graph

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/logging"
)

// Reserved member names for the synthetic ports every graph provides.
const (
	EntryName = "entry"
	ExitName  = "exit"
)

// Options configures a graph container.
type Options struct {
	// Logger receives structured execution logs. Defaults to NoOpLogger.
	Logger logging.Logger

	// Hooks receives lifecycle notifications (build, execute, aggregate-in,
	// forward, dispatch-out). Nil disables hooks.
	Hooks *core.HookManager

	// MaxWorkers bounds how many ready nodes execute concurrently within a
	// wave. Zero or negative means no bound: every wave member runs in its
	// own goroutine.
	MaxWorkers int
}

// BaseGraph is the common container machinery shared by Graph and Loop: the
// member node and edge sets, the synthetic entry/exit ports, one-shot build
// validation and the wave scheduler. It embeds core.BaseNode so a container
// is itself a node when nested inside another graph; its attribute scope
// doubles as the owning scope of every member node.
type BaseGraph struct {
	core.BaseNode

	mu      sync.Mutex
	members []core.Node // registration order, ports excluded
	index   map[string]core.Node
	edges   []*core.Edge
	entry   *port
	exit    *port
	built   bool

	// restricted names may only be wired through dedicated operations.
	restricted map[string]bool
	// exemptIsolation names skip the isolation check at build time.
	exemptIsolation map[string]bool
	// cycleExempt marks edges excluded from cycle detection (a loop's
	// sanctioned controller cycle).
	cycleExempt func(*core.Edge) bool
	// extraValidate runs after structural validation, before freezing.
	extraValidate func() error

	logger     logging.Logger
	hooks      *core.HookManager
	maxWorkers int
}

func newBaseGraph(name string, optFns ...func(o *Options)) BaseGraph {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return BaseGraph{
		BaseNode:        core.NewBaseNode(name),
		index:           map[string]core.Node{},
		entry:           newPort(EntryName),
		exit:            newPort(ExitName),
		restricted:      map[string]bool{},
		exemptIsolation: map[string]bool{},
		logger:          opts.Logger,
		hooks:           opts.Hooks,
		maxWorkers:      opts.MaxWorkers,
	}
}

// initPorts claims port ownership for the embedding container. It must run
// on the container's final address, after the embedded BaseGraph has been
// moved into place, so that eager ownership checks compare identities
// correctly.
func (g *BaseGraph) initPorts() {
	g.entry.SetOwner(g.Base())
	g.exit.SetOwner(g.Base())
}

// Logger returns the graph's logger.
func (g *BaseGraph) Logger() logging.Logger { return g.logger }

// Hooks returns the graph's hook manager, nil when hooks are disabled.
func (g *BaseGraph) Hooks() *core.HookManager { return g.hooks }

// Entry returns the synthetic entry port.
func (g *BaseGraph) Entry() core.Node { return g.entry }

// Exit returns the synthetic exit port.
func (g *BaseGraph) Exit() core.Node { return g.exit }

// Built reports whether the graph has been frozen by Build.
func (g *BaseGraph) Built() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.built
}

// Node returns the member with the given name, nil when absent.
func (g *BaseGraph) Node(name string) core.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index[name]
}

// Nodes returns the member nodes in registration order, ports excluded.
func (g *BaseGraph) Nodes() []core.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := make([]core.Node, len(g.members))
	copy(members, g.members)
	return members
}

// Edges returns the member edges in creation order.
func (g *BaseGraph) Edges() []*core.Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges := make([]*core.Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// Add registers a member node. Names must be unique within the graph and
// must not collide with the reserved port names. The node's attribute scope
// is parented to the graph scope. Fails once the graph is built.
func (g *BaseGraph) Add(n core.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		return core.NewStructuralError(g.Name(), "cannot add node %q: graph already built", n.Name())
	}
	if n.Name() == EntryName || n.Name() == ExitName {
		return core.NewStructuralError(g.Name(), "node name %q is reserved", n.Name())
	}
	if _, exists := g.index[n.Name()]; exists {
		return core.NewStructuralError(g.Name(), "duplicate node name %q", n.Name())
	}

	n.Base().SetOwner(g.Base())
	n.Base().Attributes().SetParent(g.Attributes())
	g.members = append(g.members, n)
	g.index[n.Name()] = n

	return nil
}

// Connect creates an edge between two ordinary member nodes. Edges touching
// the entry or exit ports, or a loop's controller and terminate nodes, must
// go through their dedicated operations instead. Ownership is checked
// eagerly: both endpoints must have been added to this graph.
func (g *BaseGraph) Connect(from, to core.Node, keys core.KeySet) (*core.Edge, error) {
	if from.Name() == EntryName || from.Name() == ExitName || to.Name() == EntryName || to.Name() == ExitName {
		return nil, core.NewStructuralError(g.Name(), "edges touching a port require ConnectEntry or ConnectExit")
	}
	if g.restricted[from.Name()] || g.restricted[to.Name()] {
		return nil, core.NewStructuralError(g.Name(), "edge %s->%s touches a restricted node; use its dedicated connect operation", from.Name(), to.Name())
	}

	return g.connect(from, to, keys)
}

// ConnectEntry creates the edge delivering invocation input to a member
// node, projected per keys.
func (g *BaseGraph) ConnectEntry(to core.Node, keys core.KeySet) (*core.Edge, error) {
	return g.connect(g.entry, to, keys)
}

// ConnectExit creates the edge collecting a member node's output into the
// invocation result, projected per keys.
func (g *BaseGraph) ConnectExit(from core.Node, keys core.KeySet) (*core.Edge, error) {
	return g.connect(from, g.exit, keys)
}

// connect performs ownership checks and wires the edge into both endpoints.
func (g *BaseGraph) connect(from, to core.Node, keys core.KeySet) (*core.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		return nil, core.NewStructuralError(g.Name(), "cannot connect %s->%s: graph already built", from.Name(), to.Name())
	}
	if from.Base().Owner() != g.Base() {
		return nil, core.NewStructuralError(g.Name(), "node %q belongs to a different graph", from.Name())
	}
	if to.Base().Owner() != g.Base() {
		return nil, core.NewStructuralError(g.Name(), "node %q belongs to a different graph", to.Name())
	}
	if from == to {
		return nil, core.NewStructuralError(g.Name(), "self edge on node %q", from.Name())
	}

	e := core.NewEdge(from, to, keys)
	e.SetObserver(func(ev core.EdgeEvent) {
		g.logger.Debug("edge event graph=%s edge=%s kind=%s fields=%d", g.Name(), ev.Edge.Name(), ev.Kind, len(ev.Message))
	})

	from.Base().AttachOut(e)
	to.Base().AttachIn(e)
	g.edges = append(g.edges, e)

	return e, nil
}

// Build freezes the graph: it recursively builds every member node
// (including nested sub-graphs), validates the structure and marks the
// graph built. Subsequent structural mutation is rejected.
//
// Validation rules: every ordinary member must have at least one in-edge
// and one out-edge (ports and loop-internal nodes are exempt), and the edge
// relation, excluding a loop's sanctioned controller cycle, must be acyclic.
func (g *BaseGraph) Build(ctx context.Context) error {
	if g.Built() {
		return core.NewStructuralError(g.Name(), "already built")
	}

	hookCtx := &core.HookContext{Graph: g.Name(), Stage: core.StageBuild, Moment: core.MomentBefore}
	if err := g.hooks.Run(ctx, core.StageBuild, core.MomentBefore, hookCtx); err != nil {
		return err
	}

	if err := g.build(ctx); err != nil {
		errCtx := &core.HookContext{Graph: g.Name(), Stage: core.StageBuild, Moment: core.MomentError, Err: err}
		if hookErr := g.hooks.Run(ctx, core.StageBuild, core.MomentError, errCtx); hookErr != nil {
			return hookErr
		}
		return err
	}

	afterCtx := &core.HookContext{Graph: g.Name(), Stage: core.StageBuild, Moment: core.MomentAfter}
	if err := g.hooks.Run(ctx, core.StageBuild, core.MomentAfter, afterCtx); err != nil {
		return err
	}

	g.logger.Debug("graph built graph=%s nodes=%d edges=%d", g.Name(), len(g.members), len(g.edges))

	return nil
}

func (g *BaseGraph) build(ctx context.Context) error {
	for _, n := range g.Nodes() {
		if err := n.Build(ctx); err != nil {
			return err
		}
	}

	if err := g.validate(); err != nil {
		return err
	}

	if g.extraValidate != nil {
		if err := g.extraValidate(); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.built = true
	g.mu.Unlock()

	return nil
}

func (g *BaseGraph) validate() error {
	for _, n := range g.Nodes() {
		if g.exemptIsolation[n.Name()] {
			continue
		}
		if len(n.Base().InEdges()) == 0 {
			return core.NewStructuralError(g.Name(), "isolated node %q: no in-edges", n.Name())
		}
		if len(n.Base().OutEdges()) == 0 {
			return core.NewStructuralError(g.Name(), "isolated node %q: no out-edges", n.Name())
		}
	}

	return g.detectCycle()
}

// detectCycle runs Kahn's algorithm over the member edges, skipping any
// sanctioned controller back-edges. Whatever cannot be topologically ordered
// is part of a cycle.
func (g *BaseGraph) detectCycle() error {
	names := []string{EntryName, ExitName}
	for _, n := range g.Nodes() {
		names = append(names, n.Name())
	}

	indegree := make(map[string]int, len(names))
	adjacency := make(map[string][]string, len(names))
	for _, name := range names {
		indegree[name] = 0
	}

	for _, e := range g.Edges() {
		if g.cycleExempt != nil && g.cycleExempt(e) {
			continue
		}
		adjacency[e.Sender().Name()] = append(adjacency[e.Sender().Name()], e.Receiver().Name())
		indegree[e.Receiver().Name()]++
	}

	var queue []string
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	ordered := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered++
		for _, next := range adjacency[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if ordered < len(names) {
		var cyclic []string
		for name, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return core.NewStructuralError(g.Name(), "cycle detected involving nodes %v", cyclic)
	}

	return nil
}

// resetEdges drops buffered messages on every member edge so repeated
// invocations start from clean transport state.
func (g *BaseGraph) resetEdges() {
	for _, e := range g.Edges() {
		e.Clear()
	}
}
