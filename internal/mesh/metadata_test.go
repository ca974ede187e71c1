package mesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	meta, err := Grid(GridOptions{Nx: 4, Ny: 2})
	require.NoError(t, err)

	t.Run("found with expected rank", func(t *testing.T) {
		p, err := meta.Resolve("block_1", ElementRank)
		require.NoError(t, err)
		assert.Equal(t, TopoQuad4, p.Topology())
		assert.Len(t, p.Nodes(), meta.NumNodes())
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := meta.Resolve("nope", ElementRank)
		assert.ErrorIs(t, err, ErrPartNotFound)
		assert.False(t, errors.Is(err, ErrWrongRank))
	})

	t.Run("wrong rank", func(t *testing.T) {
		_, err := meta.Resolve("left", ElementRank)
		var rankErr *RankError
		require.ErrorAs(t, err, &rankErr)
		assert.Equal(t, EdgeRank, rankErr.Got)
		assert.Equal(t, ElementRank, rankErr.Want)
		assert.ErrorIs(t, err, ErrWrongRank)
	})
}

func TestSideRank(t *testing.T) {
	assert.Equal(t, EdgeRank, NewMetaData(2, 1).SideRank())
	assert.Equal(t, FaceRank, NewMetaData(3, 1).SideRank())
}

func TestSubsets(t *testing.T) {
	meta := NewMetaData(3, 8)
	inlet, err := meta.DeclarePart("inlet", FaceRank, TopoQuad4, nil)
	require.NoError(t, err)
	_, err = meta.DeclareSubset(inlet, "inlet_quad4", FaceRank, TopoQuad4, []int{0, 1, 2, 3})
	require.NoError(t, err)
	_, err = meta.DeclareSubset(inlet, "inlet_tri3", FaceRank, TopoTri3, []int{3, 4, 5})
	require.NoError(t, err)

	assert.Len(t, inlet.Expand(), 2)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, inlet.Nodes())
	assert.Same(t, inlet, inlet.Subsets()[1].Parent())

	leaf, _ := meta.GetPart("inlet_tri3")
	assert.Equal(t, []*Part{leaf}, leaf.Expand())

	_, err = meta.DeclarePart("inlet", FaceRank, TopoQuad4, nil)
	assert.ErrorIs(t, err, ErrDuplicatePart)

	_, err = meta.DeclarePart("bad", FaceRank, TopoQuad4, []int{99})
	assert.ErrorIs(t, err, ErrNodeOutOfRange)
}

func TestGridConnectivity(t *testing.T) {
	meta, err := Grid(GridOptions{Nx: 2, Ny: 1})
	require.NoError(t, err)

	assert.Equal(t, 6, meta.NumNodes())
	assert.Equal(t, 2, meta.EntityCount(ElementRank))
	assert.Len(t, meta.Edges(), 7)
	assert.Equal(t, []int{0, 2, 4}, meta.Neighbors(1))
	assert.False(t, meta.HasOverset())

	_, err = Grid(GridOptions{Nx: 1, Ny: 1})
	assert.Error(t, err)
}

func TestGridOverset(t *testing.T) {
	meta, err := Grid(GridOptions{Nx: 4, Ny: 3, Overset: true})
	require.NoError(t, err)

	require.True(t, meta.HasOverset())
	assert.Len(t, meta.Fringe(), 2)
	c := meta.Fringe()[0]
	assert.Equal(t, 7, c.Receptor)
	assert.Equal(t, []int{6, 8}, c.Donors)

	err = meta.AddFringe(Connectivity{Receptor: 0, Donors: []int{1}, Weights: nil})
	assert.Error(t, err)
}

func TestPairings(t *testing.T) {
	meta, err := Grid(GridOptions{Nx: 2, Ny: 2})
	require.NoError(t, err)
	left, _ := meta.GetPart("left")
	right, _ := meta.GetPart("right")

	meta.RegisterPeriodic(left, right, 1e-8, "stk_kdtree")
	meta.SetupNonConformal([]*Part{left}, []*Part{right})

	require.Len(t, meta.Periodic(), 1)
	assert.Equal(t, "stk_kdtree", meta.Periodic()[0].SearchMethod)
	require.Len(t, meta.NonConformal(), 1)
	assert.Same(t, right, meta.NonConformal()[0].Opposing[0])
}
