package pathway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReactionGraph(t *testing.T) {
	g := NewReactionGraph()
	require.NotNil(t, g)
	assert.Equal(t, 0, g.Len())

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestReactionGraphAddNode(t *testing.T) {
	g := NewReactionGraph()
	g.AddNode(3)
	g.AddNode(3)
	g.AddNode(1)
	assert.Equal(t, 2, g.Len())
	assert.True(t, g.HasNode(3))
	assert.False(t, g.HasNode(2))
}

func TestReactionGraphAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := NewReactionGraph()
		g.AddNode(0)
		g.AddNode(1)
		require.NoError(t, g.AddEdge(1, 0))
		require.NoError(t, g.AddEdge(1, 0))
		assert.Equal(t, 1, g.indegree[0])
		assert.Equal(t, []int{0}, g.dependents[1])
	})

	t.Run("error cases", func(t *testing.T) {
		g := NewReactionGraph()
		g.AddNode(0)
		g.AddNode(1)
		assert.ErrorContains(t, g.AddEdge(7, 0), "source node not found")
		assert.ErrorContains(t, g.AddEdge(0, 7), "destination node not found")
		assert.ErrorContains(t, g.AddEdge(1, 1), "self-referential edge")
	})
}

func TestReactionGraphTopologicalSort(t *testing.T) {
	t.Run("chain", func(t *testing.T) {
		g := NewReactionGraph()
		for _, n := range []int{0, 1, 2} {
			g.AddNode(n)
		}
		require.NoError(t, g.AddEdge(2, 1))
		require.NoError(t, g.AddEdge(1, 0))

		order, err := g.TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, []int{2, 1, 0}, order)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		g := NewReactionGraph()
		for _, n := range []int{0, 5, 4} {
			g.AddNode(n)
		}
		require.NoError(t, g.AddEdge(5, 0))
		require.NoError(t, g.AddEdge(4, 0))

		order, err := g.TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, []int{5, 4, 0}, order)
	})

	t.Run("cycle", func(t *testing.T) {
		g := NewReactionGraph()
		g.AddNode(0)
		g.AddNode(1)
		require.NoError(t, g.AddEdge(0, 1))
		require.NoError(t, g.AddEdge(1, 0))

		_, err := g.TopologicalSort()
		assert.ErrorContains(t, err, "cycle detected")
	})
}
