package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/graphflow/core"
)

// InvokeOptions configures a single invocation.
type InvokeOptions struct {
	// Attributes seeds the graph scope before the first wave.
	Attributes core.Message
}

// WithAttributes seeds initial attributes into the graph scope.
func WithAttributes(attrs core.Message) func(o *InvokeOptions) {
	return func(o *InvokeOptions) { o.Attributes = attrs }
}

// Outcome is the result of one invocation. Complete distinguishes a
// satisfied exit port from early termination: when the ready set drains
// before the exit contract is met, Output carries the best-effort partial
// exit aggregation and Complete is false. Early termination is a valid
// terminal state, not an error.
type Outcome struct {
	Output     core.Message
	Attributes core.Message
	Complete   bool
}

// Invoke executes the built graph once: the input is delivered onto the
// entry port's out-edges (projected per each edge's contract), then waves of
// ready nodes run until the exit port is satisfied or no node can become
// ready. Independent nodes within a wave execute concurrently; attribute
// write-backs are committed serially after the whole wave has finished.
func (g *BaseGraph) Invoke(ctx context.Context, input core.Message, optFns ...func(o *InvokeOptions)) (*Outcome, error) {
	if !g.Built() {
		return nil, core.NewStructuralError(g.Name(), "invoke before build")
	}

	var opts InvokeOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	for k, v := range opts.Attributes {
		g.Attributes().Set(k, v)
	}

	runID := uuid.NewString()
	g.resetEdges()

	start := time.Now()
	g.logger.Debug("invoke started graph=%s run_id=%s fields=%d", g.Name(), runID, len(input))

	if err := g.seedEntry(input); err != nil {
		return nil, err
	}

	waves := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if g.exitSatisfied() {
			out := g.drainExit()
			g.logger.Info("invoke completed graph=%s run_id=%s waves=%d duration=%s", g.Name(), runID, waves, time.Since(start))
			return &Outcome{Output: out, Attributes: g.Attributes().Snapshot(), Complete: true}, nil
		}

		ready := g.readyNodes()
		if len(ready) == 0 {
			out := g.drainExit()
			g.logger.Info("invoke terminated early graph=%s run_id=%s waves=%d duration=%s", g.Name(), runID, waves, time.Since(start))
			return &Outcome{Output: out, Attributes: g.Attributes().Snapshot(), Complete: false}, nil
		}

		waves++
		if err := g.runWave(ctx, runID, ready); err != nil {
			return nil, err
		}
	}
}

// seedEntry delivers the invocation input onto every open entry out-edge.
func (g *BaseGraph) seedEntry(input core.Message) error {
	for _, e := range g.entry.Base().OutEdges() {
		if !e.IsOpen() {
			continue
		}
		if err := e.Send(input); err != nil {
			return err
		}
	}
	return nil
}

// exitSatisfied reports whether every open exit in-edge holds a message.
// A graph whose exit has no open in-edges can never complete and ends up in
// early termination instead.
func (g *BaseGraph) exitSatisfied() bool {
	open := 0
	for _, e := range g.exit.Base().InEdges() {
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

// drainExit aggregates buffered exit in-edge messages into the final output,
// later-registered edges winning on field collision. Edges that never
// received a message are skipped, which makes the same drain serve both the
// satisfied exit (exitSatisfied already guarantees every open edge is
// congested) and the best-effort partial aggregation of an early
// termination.
func (g *BaseGraph) drainExit() core.Message {
	out := core.Message{}
	for _, e := range g.exit.Base().InEdges() {
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

// readyNodes returns ordinary members whose gate is open and whose open
// in-edges all hold a message. Ports are driven by the container and never
// scheduled.
func (g *BaseGraph) readyNodes() []core.Node {
	var ready []core.Node
	for _, n := range g.Nodes() {
		if len(n.Base().InEdges()) == 0 {
			// Sources are seeded, never scheduled.
			continue
		}
		if n.Base().Ready() {
			ready = append(ready, n)
		}
	}
	return ready
}

// runWave executes every ready node concurrently, bounded by MaxWorkers,
// then commits attribute write-backs serially once the whole wave has
// finished. No ordering is promised between wave members.
func (g *BaseGraph) runWave(ctx context.Context, runID string, ready []core.Node) error {
	var (
		wg      sync.WaitGroup
		errCh   = make(chan error, len(ready))
		commits = make(chan func() error, len(ready))
		sem     chan struct{}
	)
	if g.maxWorkers > 0 {
		sem = make(chan struct{}, g.maxWorkers)
	}

	for _, n := range ready {
		wg.Add(1)
		go func(n core.Node) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			commit, err := g.executeNode(ctx, runID, n)
			if err != nil {
				errCh <- err
				return
			}
			commits <- commit
		}(n)
	}

	wg.Wait()
	close(errCh)
	close(commits)

	for err := range errCh {
		if err != nil {
			return err
		}
	}

	// Attribute-commit phase: one writer at a time against the shared scope.
	for commit := range commits {
		if err := commit(); err != nil {
			return err
		}
	}

	return nil
}

// executeNode runs the four-step node lifecycle: attribute pull, aggregate-
// in, forward, dispatch-out. The returned commit closure performs the
// attribute push and is applied by the caller after the wave completes.
func (g *BaseGraph) executeNode(ctx context.Context, runID string, n core.Node) (func() error, error) {
	b := n.Base()
	start := time.Now()

	hookCtx := func(stage core.Stage, moment core.Moment, msg core.Message, err error) *core.HookContext {
		return &core.HookContext{Graph: g.Name(), Node: n.Name(), RunID: runID, Stage: stage, Moment: moment, Message: msg, Err: err}
	}

	if err := g.hooks.Run(ctx, core.StageExecute, core.MomentBefore, hookCtx(core.StageExecute, core.MomentBefore, nil, nil)); err != nil {
		return nil, err
	}

	fail := func(stage core.Stage, err error) (func() error, error) {
		if hookErr := g.hooks.Run(ctx, stage, core.MomentError, hookCtx(stage, core.MomentError, nil, err)); hookErr != nil {
			return nil, hookErr
		}
		g.logger.Error("node execution failed graph=%s run_id=%s node=%s error=%v", g.Name(), runID, n.Name(), err)
		return nil, err
	}

	// 1. Attribute pull.
	if err := b.Attributes().Pull(b.PullSpec()); err != nil {
		return fail(core.StageExecute, fmt.Errorf("node %q: %w", n.Name(), err))
	}

	// 2. Aggregate-in: drain every open congested in-edge, later-registered
	// edges winning on field collision.
	if err := g.hooks.Run(ctx, core.StageAggregate, core.MomentBefore, hookCtx(core.StageAggregate, core.MomentBefore, nil, nil)); err != nil {
		return nil, err
	}
	in := core.Message{}
	for _, e := range b.InEdges() {
		if !e.IsOpen() || !e.Congested() {
			continue
		}
		msg, err := e.Receive()
		if err != nil {
			return fail(core.StageAggregate, err)
		}
		in.Merge(msg)
	}
	if err := g.hooks.Run(ctx, core.StageAggregate, core.MomentAfter, hookCtx(core.StageAggregate, core.MomentAfter, in, nil)); err != nil {
		return nil, err
	}

	// 3. Forward.
	if err := g.hooks.Run(ctx, core.StageForward, core.MomentBefore, hookCtx(core.StageForward, core.MomentBefore, in, nil)); err != nil {
		return nil, err
	}
	out, err := n.Forward(ctx, in, b.Attributes())
	if err != nil {
		return fail(core.StageForward, &core.ForwardError{Node: n.Name(), Err: err})
	}
	if err := g.hooks.Run(ctx, core.StageForward, core.MomentAfter, hookCtx(core.StageForward, core.MomentAfter, out, nil)); err != nil {
		return nil, err
	}

	// 4. Dispatch-out, with the node's own dispatcher when it has one.
	if err := g.hooks.Run(ctx, core.StageDispatch, core.MomentBefore, hookCtx(core.StageDispatch, core.MomentBefore, out, nil)); err != nil {
		return nil, err
	}
	if d, ok := n.(core.Dispatcher); ok {
		err = d.Dispatch(ctx, out, b.Attributes())
	} else {
		err = dispatchDefault(b, out)
	}
	if err != nil {
		return fail(core.StageDispatch, err)
	}
	if err := g.hooks.Run(ctx, core.StageDispatch, core.MomentAfter, hookCtx(core.StageDispatch, core.MomentAfter, out, nil)); err != nil {
		return nil, err
	}

	if err := g.hooks.Run(ctx, core.StageExecute, core.MomentAfter, hookCtx(core.StageExecute, core.MomentAfter, out, nil)); err != nil {
		return nil, err
	}

	g.logger.Debug("node executed graph=%s run_id=%s node=%s duration=%s", g.Name(), runID, n.Name(), time.Since(start))

	commit := func() error {
		if err := b.Attributes().Push(b.PullSpec(), b.PushSpec(), out); err != nil {
			return fmt.Errorf("node %q: %w", n.Name(), err)
		}
		return nil
	}

	return commit, nil
}

// dispatchDefault fans the forward output out across every open out-edge,
// projected per each edge's contract.
func dispatchDefault(b *core.BaseNode, out core.Message) error {
	for _, e := range b.OutEdges() {
		if !e.IsOpen() {
			continue
		}
		if err := e.Send(out); err != nil {
			return err
		}
	}
	return nil
}
