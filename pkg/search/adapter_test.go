package search_test

import (
	"context"
	"testing"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicAdapterIsDeterministic(t *testing.T) {
	zt := board.NewZobristTable(1)
	b := board.New(zt)
	b, err := b.Place(15, 15, board.Red)
	require.NoError(t, err)
	b, err = b.Place(16, 15, board.Blue)
	require.NoError(t, err)

	a := search.NewHeuristicAdapter()
	first, err := a.Search(context.Background(), b, board.Red, search.Options{TopK: 5})
	require.NoError(t, err)
	second, err := a.Search(context.Background(), b, board.Red, search.Options{TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHeuristicAdapterRespectsTopK(t *testing.T) {
	zt := board.NewZobristTable(1)
	b := board.New(zt)

	a := search.NewHeuristicAdapter()
	out, err := a.Search(context.Background(), b, board.Red, search.Options{TopK: 3})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestHeuristicAdapterPrefersExtendingOwnLine(t *testing.T) {
	zt := board.NewZobristTable(1)
	b := board.New(zt)
	var err error
	for _, m := range []board.Move{{X: 14, Y: 15}, {X: 15, Y: 15}, {X: 16, Y: 15}} {
		b, err = b.Place(m.X, m.Y, board.Red)
		require.NoError(t, err)
	}

	a := search.NewHeuristicAdapter()
	out, err := a.Search(context.Background(), b, board.Red, search.Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)

	best := out[0].Move
	assert.Truef(t, (best == board.Move{X: 13, Y: 15}) || (best == board.Move{X: 17, Y: 15}),
		"expected the top candidate to extend the three-in-a-row, got %s", best)
}

func TestHeuristicAdapterRespectsCancellation(t *testing.T) {
	zt := board.NewZobristTable(1)
	b := board.New(zt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := search.NewHeuristicAdapter()
	_, err := a.Search(ctx, b, board.Red, search.Options{})
	assert.Error(t, err)
}

func TestHeuristicAdapterReportsNodesAndForcingMoves(t *testing.T) {
	zt := board.NewZobristTable(1)
	b := board.New(zt)
	var err error
	for _, m := range []board.Move{{X: 14, Y: 15}, {X: 15, Y: 15}, {X: 16, Y: 15}, {X: 17, Y: 15}} {
		b, err = b.Place(m.X, m.Y, board.Red)
		require.NoError(t, err)
	}

	a := search.NewHeuristicAdapter()
	out, err := a.Search(context.Background(), b, board.Red, search.Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)

	best := out[0]
	assert.Equal(t, int64(1), best.Nodes, "the heuristic evaluates each candidate once, no lookahead")
	assert.Equal(t, 0, best.DepthReached, "a static evaluator reaches depth 0")
	assert.Truef(t, best.IsForcing, "completing the open four at %s should be reported forcing", best.Move)
}
