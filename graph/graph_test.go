package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphflow/core"
)

func TestGraph_NestedSubGraphRunsAsNode(t *testing.T) {
	inner := New("inner")
	double := newTestNode("double", func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
		return core.Message{"x": in["x"].(int) * 2}, nil
	})
	require.NoError(t, inner.Add(double))
	_, err := inner.ConnectEntry(double, nil)
	require.NoError(t, err)
	_, err = inner.ConnectExit(double, nil)
	require.NoError(t, err)

	outer := New("outer")
	inc := newTestNode("inc", func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
		return core.Message{"x": in["x"].(int) + 1}, nil
	})
	require.NoError(t, outer.Add(inner))
	require.NoError(t, outer.Add(inc))
	_, err = outer.ConnectEntry(inner, nil)
	require.NoError(t, err)
	_, err = outer.Connect(inner, inc, nil)
	require.NoError(t, err)
	_, err = outer.ConnectExit(inc, nil)
	require.NoError(t, err)
	require.NoError(t, outer.Build(context.Background()))

	outcome, err := outer.Invoke(context.Background(), core.Message{"x": 3})
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Equal(t, core.Message{"x": 7}, outcome.Output)
}

func TestGraph_NestedScopeParentsToHost(t *testing.T) {
	inner := New("inner")
	reader := newTestNode("reader", func(_ context.Context, in core.Message, attrs *core.AttributeScope) (core.Message, error) {
		v, _ := attrs.Get("shared")
		return core.Message{"seen": v}, nil
	})
	require.NoError(t, inner.Add(reader))
	_, err := inner.ConnectEntry(reader, nil)
	require.NoError(t, err)
	_, err = inner.ConnectExit(reader, nil)
	require.NoError(t, err)

	outer := New("outer")
	require.NoError(t, outer.Add(inner))
	_, err = outer.ConnectEntry(inner, nil)
	require.NoError(t, err)
	_, err = outer.ConnectExit(inner, nil)
	require.NoError(t, err)
	require.NoError(t, outer.Build(context.Background()))

	outcome, err := outer.Invoke(context.Background(), core.Message{}, WithAttributes(core.Message{"shared": "value"}))
	require.NoError(t, err)
	assert.Equal(t, core.Message{"seen": "value"}, outcome.Output)
}

func TestGraph_RepeatedInvocationsStartClean(t *testing.T) {
	g := New("repeat")
	echo := newTestNode("echo", func(_ context.Context, in core.Message, _ *core.AttributeScope) (core.Message, error) {
		return in, nil
	})
	buildLinear(t, g, []core.KeySet{nil, nil}, echo)

	for i := 0; i < 3; i++ {
		outcome, err := g.Invoke(context.Background(), core.Message{"i": i})
		require.NoError(t, err)
		assert.True(t, outcome.Complete)
		assert.Equal(t, core.Message{"i": i}, outcome.Output)
	}
}
