package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphflow/core"
)

// buildLinear wires entry -> nodes... -> exit with the given edge contracts.
func buildLinear(t *testing.T, g *Graph, contracts []core.KeySet, nodes ...core.Node) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, g.Add(n))
	}
	_, err := g.ConnectEntry(nodes[0], contracts[0])
	require.NoError(t, err)
	for i := 0; i < len(nodes)-1; i++ {
		_, err = g.Connect(nodes[i], nodes[i+1], contracts[i+1])
		require.NoError(t, err)
	}
	_, err = g.ConnectExit(nodes[len(nodes)-1], contracts[len(contracts)-1])
	require.NoError(t, err)
	require.NoError(t, g.Build(context.Background()))
}

func TestInvoke_DoublingPipeline(t *testing.T) {
	g := New("pipeline")
	double := newTestNode("double", func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
		return core.Message{"y": in["x"].(int) * 2}, nil
	})
	buildLinear(t, g, []core.KeySet{{"x": "operand"}, {"y": "result"}}, double)

	outcome, err := g.Invoke(context.Background(), core.Message{"x": 2})
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Equal(t, core.Message{"y": 4}, outcome.Output)
	assert.Equal(t, core.Message{}, outcome.Attributes)
}

func TestInvoke_BeforeBuildFails(t *testing.T) {
	g := New("g")

	_, err := g.Invoke(context.Background(), core.Message{})
	var structural *core.StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestInvoke_WaveCountIsLinearInDepth(t *testing.T) {
	g := New("deep")
	var waves []string
	var mu sync.Mutex
	mk := func(name string) *testNode {
		return newTestNode(name, func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
			mu.Lock()
			waves = append(waves, name)
			mu.Unlock()
			return in, nil
		})
	}
	a, b, c := mk("a"), mk("b"), mk("c")
	buildLinear(t, g, []core.KeySet{nil, nil, nil, nil}, a, b, c)

	outcome, err := g.Invoke(context.Background(), core.Message{"v": 1})
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	// Strict chain: each node runs in its own wave, in topological order.
	assert.Equal(t, []string{"a", "b", "c"}, waves)
}

func TestInvoke_FanInLastRegisteredEdgeWins(t *testing.T) {
	g := New("fanin")
	left := newTestNode("left", func(_ context.Context, _ core.Message, _ *core.AttributeScope) (core.Message, error) {
		return core.Message{"v": "left"}, nil
	})
	right := newTestNode("right", func(_ context.Context, _ core.Message, _ *core.AttributeScope) (core.Message, error) {
		return core.Message{"v": "right"}, nil
	})
	var got core.Message
	sink := newTestNode("sink", func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
		got = in.Clone()
		return in, nil
	})

	for _, n := range []core.Node{left, right, sink} {
		require.NoError(t, g.Add(n))
	}
	_, err := g.ConnectEntry(left, nil)
	require.NoError(t, err)
	_, err = g.ConnectEntry(right, nil)
	require.NoError(t, err)
	_, err = g.Connect(left, sink, nil)
	require.NoError(t, err)
	_, err = g.Connect(right, sink, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(sink, nil)
	require.NoError(t, err)
	require.NoError(t, g.Build(context.Background()))

	outcome, err := g.Invoke(context.Background(), core.Message{})
	require.NoError(t, err)
	require.True(t, outcome.Complete)
	// The edge registered later (right->sink) wins the field collision.
	assert.Equal(t, core.Message{"v": "right"}, got)
}

func TestInvoke_ForwardErrorAborts(t *testing.T) {
	g := New("failing")
	boom := errors.New("boom")
	bad := newTestNode("bad", func(_ context.Context, _ core.Message, _ *core.AttributeScope) (core.Message, error) {
		return nil, boom
	})
	buildLinear(t, g, []core.KeySet{nil, nil}, bad)

	_, err := g.Invoke(context.Background(), core.Message{})
	var forwardErr *core.ForwardError
	require.ErrorAs(t, err, &forwardErr)
	assert.Equal(t, "bad", forwardErr.Node)
	assert.ErrorIs(t, err, boom)
}

func TestInvoke_EarlyTerminationIsNotAnError(t *testing.T) {
	g := New("dead-end")
	stall := newTestNode("stall", nil)
	require.NoError(t, g.Add(stall))

	// The node's gate is closed, so it never becomes ready and the exit
	// contract can never be satisfied.
	_, err := g.ConnectEntry(stall, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(stall, nil)
	require.NoError(t, err)
	require.NoError(t, g.Build(context.Background()))
	stall.Close()

	outcome, err := g.Invoke(context.Background(), core.Message{"x": 1})
	require.NoError(t, err)
	assert.False(t, outcome.Complete)
	assert.Equal(t, core.Message{}, outcome.Output)
}

func TestInvoke_InitialAttributesVisibleToNodes(t *testing.T) {
	g := New("attrs")
	var seen any
	reader := newTestNode("reader", func(_ context.Context, in core.Message, attrs *core.AttributeScope) (core.Message, error) {
		seen, _ = attrs.Get("tenant")
		return in, nil
	})
	buildLinear(t, g, []core.KeySet{nil, nil}, reader)

	outcome, err := g.Invoke(context.Background(), core.Message{"x": 1}, WithAttributes(core.Message{"tenant": "acme"}))
	require.NoError(t, err)
	assert.Equal(t, "acme", seen)
	assert.Equal(t, "acme", outcome.Attributes["tenant"])
}

func TestInvoke_AttributePushback(t *testing.T) {
	g := New("writeback")
	writer := newTestNode("writer", func(_ context.Context, in core.Message, attrs *core.AttributeScope) (core.Message, error) {
		attrs.Set("count", 7)
		return core.Message{"count": 7}, nil
	})
	buildLinear(t, g, []core.KeySet{nil, nil}, writer)

	outcome, err := g.Invoke(context.Background(), core.Message{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 7, outcome.Attributes["count"])
}

func TestInvoke_ConcurrentWaveMembers(t *testing.T) {
	g := New("parallel")

	// Two independent branches must run within the same wave.
	var mu sync.Mutex
	running := 0
	peak := 0
	barrier := make(chan struct{})
	mk := func(name string) *testNode {
		return newTestNode(name, func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			if running == 2 {
				close(barrier)
			}
			mu.Unlock()
			<-barrier
			mu.Lock()
			running--
			mu.Unlock()
			return in, nil
		})
	}
	a, b := mk("a"), mk("b")
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))
	for _, n := range []core.Node{a, b} {
		_, err := g.ConnectEntry(n, nil)
		require.NoError(t, err)
		_, err = g.ConnectExit(n, nil)
		require.NoError(t, err)
	}
	require.NoError(t, g.Build(context.Background()))

	outcome, err := g.Invoke(context.Background(), core.Message{"x": 1})
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Equal(t, 2, peak)
}

func TestInvoke_ContextCancellation(t *testing.T) {
	g := New("cancelled")
	a := passThrough("a")
	buildLinear(t, g, []core.KeySet{nil, nil}, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Invoke(ctx, core.Message{"x": 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoke_LifecycleHooks(t *testing.T) {
	hooks := core.NewHookManager()
	var stages []core.Stage
	var mu sync.Mutex
	for _, stage := range []core.Stage{core.StageExecute, core.StageAggregate, core.StageForward, core.StageDispatch} {
		hooks.Register(core.NewFunctionHook(stage, core.MomentAfter, func(_ context.Context, hookCtx *core.HookContext) error {
			mu.Lock()
			stages = append(stages, hookCtx.Stage)
			mu.Unlock()
			return nil
		}))
	}

	g := New("hooked", func(o *Options) { o.Hooks = hooks })
	a := passThrough("a")
	buildLinear(t, g, []core.KeySet{nil, nil}, a)

	_, err := g.Invoke(context.Background(), core.Message{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, []core.Stage{core.StageAggregate, core.StageForward, core.StageDispatch, core.StageExecute}, stages)
}

func TestInvoke_HookErrorAborts(t *testing.T) {
	hooks := core.NewHookManager()
	veto := errors.New("vetoed")
	hooks.Register(core.NewFunctionHook(core.StageForward, core.MomentBefore, func(_ context.Context, _ *core.HookContext) error {
		return veto
	}))

	g := New("vetoed", func(o *Options) { o.Hooks = hooks })
	a := passThrough("a")
	buildLinear(t, g, []core.KeySet{nil, nil}, a)

	_, err := g.Invoke(context.Background(), core.Message{"x": 1})
	assert.ErrorIs(t, err, veto)
}

func TestInvoke_MaxWorkersBound(t *testing.T) {
	g := New("bounded", func(o *Options) { o.MaxWorkers = 1 })

	var mu sync.Mutex
	running, peak := 0, 0
	mk := func(name string) *testNode {
		return newTestNode(name, func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			mu.Lock()
			running--
			mu.Unlock()
			return in, nil
		})
	}
	a, b := mk("a"), mk("b")
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))
	for _, n := range []core.Node{a, b} {
		_, err := g.ConnectEntry(n, nil)
		require.NoError(t, err)
		_, err = g.ConnectExit(n, nil)
		require.NoError(t, err)
	}
	require.NoError(t, g.Build(context.Background()))

	_, err := g.Invoke(context.Background(), core.Message{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, peak)
}
