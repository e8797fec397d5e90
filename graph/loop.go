package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/graphflow/core"
)

// Reserved member names for a loop's internal nodes.
const (
	ControllerName = "controller"
	TerminateName  = "terminate"
)

// AttrIteration is the attribute key under which a loop publishes its
// current iteration counter.
const AttrIteration = "current_iteration"

// LoopOptions configures a Loop.
type LoopOptions struct {
	Options

	// Predicate terminates the loop when it returns true for the message
	// entering the controller.
	Predicate core.Predicate

	// Judge is an external collaborator consulted instead of Predicate when
	// set, typically a model-backed semantic judge.
	Judge core.Judge
}

// WithTermination sets the loop's termination predicate.
func WithTermination(pred core.Predicate) func(o *LoopOptions) {
	return func(o *LoopOptions) { o.Predicate = pred }
}

// WithJudge sets an external termination judge, taking precedence over a
// plain predicate.
func WithJudge(j core.Judge) func(o *LoopOptions) {
	return func(o *LoopOptions) { o.Judge = j }
}

// Loop legalizes exactly one bounded cycle on top of the otherwise strictly
// acyclic scheduler. An internal controller node evaluates termination at
// the start of every iteration and releases the current message into the
// loop body; edges back onto the controller close the sanctioned cycle and
// are excluded from cycle detection. An internal terminate node provides the
// early-exit escape: any message delivered to it short-circuits the loop to
// done, bypassing remaining in-flight work for that iteration.
//
// Exhausting MaxIterations without the predicate ever matching is a normal
// termination, not an error. The counter is published into the loop's
// attribute scope under AttrIteration.
type Loop struct {
	BaseGraph

	controller    *port
	terminate     *port
	maxIterations int
	predicate     core.Predicate
	judge         core.Judge
}

// NewLoop creates a loop with the given iteration bound.
func NewLoop(name string, maxIterations int, optFns ...func(o *LoopOptions)) *Loop {
	var opts LoopOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	l := &Loop{
		BaseGraph:     newBaseGraph(name, func(o *Options) { *o = opts.Options }),
		controller:    newPort(ControllerName),
		terminate:     newPort(TerminateName),
		maxIterations: maxIterations,
		predicate:     opts.Predicate,
		judge:         opts.Judge,
	}
	l.initPorts()

	// The internal nodes are restricted members: wired only through the
	// dedicated connect operations and never scheduled as part of a wave.
	l.controller.SetOwner(l.Base())
	l.controller.Attributes().SetParent(l.Attributes())
	l.controller.Close()
	l.terminate.SetOwner(l.Base())
	l.terminate.Attributes().SetParent(l.Attributes())
	l.terminate.Close()

	l.mu.Lock()
	l.members = append(l.members, l.controller, l.terminate)
	l.index[ControllerName] = l.controller
	l.index[TerminateName] = l.terminate
	l.restricted[ControllerName] = true
	l.restricted[TerminateName] = true
	l.exemptIsolation[ControllerName] = true
	l.exemptIsolation[TerminateName] = true
	l.mu.Unlock()

	l.cycleExempt = func(e *core.Edge) bool { return e.Receiver() == l.controller }
	l.extraValidate = l.validateLoop

	return l
}

// Controller returns the internal controller node.
func (l *Loop) Controller() core.Node { return l.controller }

// Terminate returns the internal terminate node.
func (l *Loop) Terminate() core.Node { return l.terminate }

// MaxIterations returns the iteration bound.
func (l *Loop) MaxIterations() int { return l.maxIterations }

// ConnectController creates the edge releasing each iteration's message
// from the controller into a body node.
func (l *Loop) ConnectController(to core.Node, keys core.KeySet) (*core.Edge, error) {
	return l.connect(l.controller, to, keys)
}

// ConnectToController creates the cycle-closing edge from a body node back
// onto the controller. These edges are excluded from cycle detection; they
// are the one sanctioned cycle in the graph.
func (l *Loop) ConnectToController(from core.Node, keys core.KeySet) (*core.Edge, error) {
	return l.connect(from, l.controller, keys)
}

// ConnectTerminate creates an early-exit edge from a body node onto the
// terminate node. A message on it breaks the loop immediately.
func (l *Loop) ConnectTerminate(from core.Node, keys core.KeySet) (*core.Edge, error) {
	return l.connect(from, l.terminate, keys)
}

func (l *Loop) validateLoop() error {
	if l.maxIterations <= 0 {
		return core.NewStructuralError(l.Name(), "max iterations must be positive, got %d", l.maxIterations)
	}
	if len(l.controller.Base().OutEdges()) == 0 {
		return core.NewStructuralError(l.Name(), "controller has no out-edges into the loop body")
	}
	if len(l.controller.Base().InEdges()) == 0 {
		return core.NewStructuralError(l.Name(), "no edge closes the cycle back onto the controller")
	}
	return nil
}

// Invoke runs the loop state machine until termination: at each iteration
// start the controller evaluates the bound (counter or predicate/judge); if
// it holds, the current message is flushed as the loop output. Otherwise the
// counter is incremented and published, the controller's out-edges are
// re-opened, and the message is released into the body, whose scheduler runs
// to a fixed point back onto the controller's in-edges.
func (l *Loop) Invoke(ctx context.Context, input core.Message, optFns ...func(o *InvokeOptions)) (*Outcome, error) {
	if !l.Built() {
		return nil, core.NewStructuralError(l.Name(), "invoke before build")
	}

	var opts InvokeOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	for k, v := range opts.Attributes {
		l.Attributes().Set(k, v)
	}

	runID := uuid.NewString()
	l.resetEdges()

	out, complete, err := l.run(ctx, runID, input)
	if err != nil {
		return nil, err
	}

	return &Outcome{Output: out, Attributes: l.Attributes().Snapshot(), Complete: complete}, nil
}

// Forward implements core.Node so a loop can be nested inside another
// graph.
func (l *Loop) Forward(ctx context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
	l.resetEdges()
	out, _, err := l.run(ctx, uuid.NewString(), in)
	return out, err
}

func (l *Loop) run(ctx context.Context, runID string, input core.Message) (core.Message, bool, error) {
	attrs := l.Attributes()
	msg := input
	iteration := 0
	attrs.Set(AttrIteration, iteration)

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		default:
		}

		done, err := l.shouldTerminate(ctx, iteration, msg)
		if err != nil {
			return nil, false, err
		}
		if done {
			l.logger.Info("loop done loop=%s run_id=%s iterations=%d duration=%s", l.Name(), runID, iteration, time.Since(start))
			return msg, true, nil
		}

		iteration++
		attrs.Set(AttrIteration, iteration)
		l.logger.Debug("loop iteration loop=%s run_id=%s iteration=%d", l.Name(), runID, iteration)

		for _, e := range l.controller.Base().OutEdges() {
			e.Open()
			if err := e.Send(msg); err != nil {
				return nil, false, err
			}
		}

		out, terminated, err := l.runBody(ctx, runID)
		if err != nil {
			return nil, false, err
		}
		if terminated {
			l.logger.Info("loop terminated early loop=%s run_id=%s iteration=%d duration=%s", l.Name(), runID, iteration, time.Since(start))
			l.resetEdges()
			return out, true, nil
		}
		if out == nil {
			// Body starved before the cycle closed: early termination.
			l.logger.Info("loop body starved loop=%s run_id=%s iteration=%d", l.Name(), runID, iteration)
			return msg, false, nil
		}

		msg = out
	}
}

// shouldTerminate evaluates the iteration bound, then the judge or the
// predicate against the message entering the controller.
func (l *Loop) shouldTerminate(ctx context.Context, iteration int, msg core.Message) (bool, error) {
	if iteration >= l.maxIterations {
		return true, nil
	}
	if l.judge != nil {
		done, err := l.judge.Judge(ctx, msg, l.Attributes())
		if err != nil {
			return false, fmt.Errorf("loop %q: termination judge: %w", l.Name(), err)
		}
		return done, nil
	}
	if l.predicate != nil {
		return l.predicate(msg, l.Attributes()), nil
	}
	return false, nil
}

// runBody drives the internal scheduler for one iteration: waves run until
// a message reaches the terminate node (break) or the ready set drains.
// A drained ready set with every open controller in-edge congested is the
// iteration's fixed point; drained without a closed cycle is starvation,
// reported as a nil fixed-point message. The cycle closing does not cut an
// iteration short: body branches deeper than the cycle-closing path keep
// running until nothing is ready, so every branch sees the current
// iteration's message.
func (l *Loop) runBody(ctx context.Context, runID string) (core.Message, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		default:
		}

		// Break beats any in-flight work from the same wave.
		for _, e := range l.terminate.Base().InEdges() {
			if !e.Congested() {
				continue
			}
			msg, err := e.Receive()
			if err != nil {
				return nil, false, err
			}
			return msg, true, nil
		}

		ready := l.readyNodes()
		if len(ready) == 0 {
			if l.cycleClosed() {
				return l.drainController(), false, nil
			}
			return nil, false, nil
		}

		if err := l.runWave(ctx, runID, ready); err != nil {
			return nil, false, err
		}
	}
}

// cycleClosed reports whether every open controller in-edge holds the
// iteration's resulting message.
func (l *Loop) cycleClosed() bool {
	open := 0
	for _, e := range l.controller.Base().InEdges() {
		if !e.IsOpen() {
			continue
		}
		open++
		if !e.Congested() {
			return false
		}
	}
	return open > 0
}

// drainController merges the messages arriving back at the controller,
// later-registered edges winning on field collision.
func (l *Loop) drainController() core.Message {
	out := core.Message{}
	for _, e := range l.controller.Base().InEdges() {
		if !e.IsOpen() || !e.Congested() {
			continue
		}
		msg, err := e.Receive()
		if err != nil {
			continue
		}
		out.Merge(msg)
	}
	return out
}
