package canon_test

import (
	"testing"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/canon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCanonicalHashInvariantUnderTransform covers property 2: for a position
// with every stone far from the edge, canonicalizing the position and
// canonicalizing any of its eight symmetric images yields the same H_c.
func TestCanonicalHashInvariantUnderTransform(t *testing.T) {
	zt := board.NewZobristTable(123)
	b := board.New(zt)

	var err error
	b, err = b.Place(15, 15, board.Red)
	require.NoError(t, err)
	b, err = b.Place(16, 10, board.Blue)
	require.NoError(t, err)
	b, err = b.Place(20, 18, board.Red)
	require.NoError(t, err)

	base := canon.Canonicalize(zt, b)
	require.False(t, base.NearEdge)

	for _, tr := range canon.All() {
		img, err := imageOf(zt, b, tr)
		require.NoError(t, err)

		got := canon.Canonicalize(zt, img)
		assert.Equalf(t, base.Hash, got.Hash, "transform %s broke canonical invariance", tr)
	}
}

// TestEdgeAdjacentSuppressesToIdentity covers property 3 / scenario S4: a
// stone within the edge guard forces Transform == Identity.
func TestEdgeAdjacentSuppressesToIdentity(t *testing.T) {
	zt := board.NewZobristTable(9)
	b := board.New(zt)
	b, err := b.Place(0, 15, board.Red)
	require.NoError(t, err)

	res := canon.Canonicalize(zt, b)
	assert.True(t, res.NearEdge)
	assert.Equal(t, canon.Identity, res.Transform)
	assert.Equal(t, b.Hash(), res.Hash)
}

func TestFarFromEdgeIsNotSuppressed(t *testing.T) {
	zt := board.NewZobristTable(9)
	b := board.New(zt)
	b, err := b.Place(15, 15, board.Red)
	require.NoError(t, err)

	res := canon.Canonicalize(zt, b)
	assert.False(t, res.NearEdge)
}

// imageOf rebuilds b with every occupied cell moved to its image under tr.
func imageOf(zt *board.ZobristTable, b board.Board, tr canon.Transform) (board.Board, error) {
	img := board.New(zt)
	for _, o := range b.OccupiedCells() {
		m := canon.Apply(tr, board.Move{X: o.X, Y: o.Y})
		var err error
		img, err = img.Place(m.X, m.Y, o.Side)
		if err != nil {
			return board.Board{}, err
		}
	}
	return img, nil
}
