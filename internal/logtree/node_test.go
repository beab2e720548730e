package logtree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranch_MarshalKeepsOrder(t *testing.T) {
	b := NewBranch()
	b.Set("z", Lines("1"))
	b.Set("a", Lines())
	b.Set("m", BranchNode(nil))
	b.Set("z", Lines("2"))

	data, err := json.Marshal(BranchNode(b))
	require.NoError(t, err)
	assert.Equal(t, `{"z":["2"],"a":[],"m":{}}`, string(data))
}

func TestNode_IsEmpty(t *testing.T) {
	assert.True(t, Node{}.IsEmpty())
	assert.True(t, Lines().IsEmpty())
	assert.True(t, BranchNode(nil).IsEmpty())
	assert.False(t, Lines("x").IsEmpty())
}

func TestNode_Get(t *testing.T) {
	inner := NewBranch()
	inner.Set("g", Lines("line"))
	outer := NewBranch()
	outer.Set("f", BranchNode(inner))
	root := BranchNode(outer)

	got, ok := root.Get("f", "g")
	require.True(t, ok)
	assert.Equal(t, []string{"line"}, got.Lines())

	_, ok = root.Get("f", "g", "deeper")
	assert.False(t, ok)
	_, ok = root.Get("missing")
	assert.False(t, ok)
}

func TestBuilder_OrdersSourcesWithinFolder(t *testing.T) {
	b := NewBuilder()
	b.Add("test", "test/10_Post.txt", Structure([]string{"x"}))
	b.Add("build", "build/1_Setup.txt", Structure([]string{"y"}))
	b.Add("test", "test/2_Run.txt", Structure([]string{"z"}))

	tree := b.Tree()

	assert.Equal(t, []string{"test", "build"}, tree.Branch().Keys())
	folder, ok := tree.Get("test")
	require.True(t, ok)
	assert.Equal(t, []string{"test/2_Run.txt", "test/10_Post.txt"}, folder.Branch().Keys())
}
