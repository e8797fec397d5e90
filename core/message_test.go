package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_CloneIsIndependent(t *testing.T) {
	m := Message{"x": 1}
	clone := m.Clone()
	clone["x"] = 2

	assert.Equal(t, 1, m["x"])
}

func TestMessage_MergeOverwrites(t *testing.T) {
	m := Message{"x": 1, "y": 2}
	m.Merge(Message{"y": 20, "z": 30})

	assert.Equal(t, Message{"x": 1, "y": 20, "z": 30}, m)
}

func TestMessage_ProjectNilKeySetPassesThrough(t *testing.T) {
	m := Message{"x": 1, "y": 2}

	assert.Equal(t, m, m.Project(nil))
	assert.Equal(t, Message{"x": 1}, m.Project(KeySet{"x": ""}))
}

func TestKeySet_Union(t *testing.T) {
	k := KeySet{"a": "first", "b": "kept"}
	u := k.Union(KeySet{"a": "second", "c": "new"})

	assert.Equal(t, []string{"a", "b", "c"}, u.Names())
	assert.Equal(t, "second", u["a"])
}
