package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphflow/core"
)

// testNode is a lightweight concrete member used across the package tests.
type testNode struct {
	core.BaseNode
	fn func(context.Context, core.Message, *core.AttributeScope) (core.Message, error)
}

func newTestNode(name string, fn func(context.Context, core.Message, *core.AttributeScope) (core.Message, error)) *testNode {
	return &testNode{BaseNode: core.NewBaseNode(name), fn: fn}
}

func (n *testNode) Forward(ctx context.Context, in core.Message, attrs *core.AttributeScope) (core.Message, error) {
	if n.fn != nil {
		return n.fn(ctx, in, attrs)
	}
	return in, nil
}

// passThrough returns an identity member.
func passThrough(name string) *testNode { return newTestNode(name, nil) }

func TestBaseGraph_AddRejectsDuplicatesAndReservedNames(t *testing.T) {
	g := New("g")

	require.NoError(t, g.Add(passThrough("a")))

	var structural *core.StructuralError
	assert.ErrorAs(t, g.Add(passThrough("a")), &structural)
	assert.ErrorAs(t, g.Add(passThrough(EntryName)), &structural)
	assert.ErrorAs(t, g.Add(passThrough(ExitName)), &structural)
}

func TestBaseGraph_ConnectChecksOwnershipEagerly(t *testing.T) {
	g := New("g")
	other := New("other")

	a := passThrough("a")
	b := passThrough("b")
	require.NoError(t, g.Add(a))
	require.NoError(t, other.Add(b))

	_, err := g.Connect(a, b, nil)
	var structural *core.StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Contains(t, structural.Error(), "different graph")
}

func TestBaseGraph_ConnectRejectsPortsAndSelfEdges(t *testing.T) {
	g := New("g")
	a := passThrough("a")
	require.NoError(t, g.Add(a))

	var structural *core.StructuralError
	_, err := g.Connect(a, g.Exit(), nil)
	assert.ErrorAs(t, err, &structural)

	_, err = g.Connect(a, a, nil)
	assert.ErrorAs(t, err, &structural)
}

func TestBaseGraph_BuildRejectsIsolatedNode(t *testing.T) {
	g := New("g")
	a := passThrough("a")
	lonely := passThrough("lonely")
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(lonely))

	_, err := g.ConnectEntry(a, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(a, nil)
	require.NoError(t, err)

	var structural *core.StructuralError
	require.ErrorAs(t, g.Build(context.Background()), &structural)
	assert.Contains(t, structural.Error(), "lonely")
}

func TestBaseGraph_BuildRejectsCycle(t *testing.T) {
	g := New("g")
	a := passThrough("a")
	b := passThrough("b")
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))

	_, err := g.ConnectEntry(a, nil)
	require.NoError(t, err)
	_, err = g.Connect(a, b, nil)
	require.NoError(t, err)
	_, err = g.Connect(b, a, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(b, nil)
	require.NoError(t, err)

	var structural *core.StructuralError
	require.ErrorAs(t, g.Build(context.Background()), &structural)
	assert.Contains(t, structural.Error(), "cycle")
}

func TestBaseGraph_BuildFreezesStructure(t *testing.T) {
	g := New("g")
	a := passThrough("a")
	require.NoError(t, g.Add(a))

	_, err := g.ConnectEntry(a, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(a, nil)
	require.NoError(t, err)

	require.NoError(t, g.Build(context.Background()))
	assert.True(t, g.Built())

	var structural *core.StructuralError
	assert.ErrorAs(t, g.Add(passThrough("late")), &structural)
	_, err = g.ConnectExit(a, nil)
	assert.ErrorAs(t, err, &structural)
	assert.ErrorAs(t, g.Build(context.Background()), &structural)
}

func TestBaseGraph_BuildRunsChildBuilds(t *testing.T) {
	g := New("g")

	built := false
	a := &buildTrackingNode{testNode: *passThrough("a"), built: &built}
	require.NoError(t, g.Add(a))

	_, err := g.ConnectEntry(a, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(a, nil)
	require.NoError(t, err)

	require.NoError(t, g.Build(context.Background()))
	assert.True(t, built)
}

type buildTrackingNode struct {
	testNode
	built *bool
}

func (n *buildTrackingNode) Build(_ context.Context) error {
	*n.built = true
	return nil
}

func TestBaseGraph_BuildHooks(t *testing.T) {
	hooks := core.NewHookManager()
	var moments []core.Moment
	for _, moment := range []core.Moment{core.MomentBefore, core.MomentAfter} {
		hooks.Register(core.NewFunctionHook(core.StageBuild, moment, func(_ context.Context, hookCtx *core.HookContext) error {
			moments = append(moments, hookCtx.Moment)
			return nil
		}))
	}

	g := New("g", func(o *Options) { o.Hooks = hooks })
	a := passThrough("a")
	require.NoError(t, g.Add(a))
	_, err := g.ConnectEntry(a, nil)
	require.NoError(t, err)
	_, err = g.ConnectExit(a, nil)
	require.NoError(t, err)

	require.NoError(t, g.Build(context.Background()))
	assert.Equal(t, []core.Moment{core.MomentBefore, core.MomentAfter}, moments)
}
