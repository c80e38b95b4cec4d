// Package search defines the contract the generator uses to rank candidate
// replies at a position, plus one deterministic reference implementation.
// The real search engine that drives book generation is external to this
// module (spec §5): Adapter is the consumed-only boundary, and
// HeuristicAdapter exists only so the generator and its tests have a
// concrete, dependency-free implementation to run against.
package search

import (
	"context"
	"sort"

	"github.com/lavantien/carobook/pkg/board"
)

// Candidate is one ranked reply at a position: the move, its score, and the
// engine's own account of how it reached that score, per the (move, score,
// nodes, depth_reached, is_forcing) tuple an Adapter implementation owes the
// generator.
type Candidate struct {
	Move  board.Move
	Score int
	// Nodes is however the engine counts search effort for this candidate
	// (positions evaluated, playouts, whatever its internal unit is).
	Nodes int64
	// DepthReached is the plies of lookahead actually completed for this
	// candidate, which may fall short of Options.TargetDepth under a time
	// or node budget.
	DepthReached int
	// IsForcing marks a candidate that creates an immediate four-in-a-row
	// threat: the opponent has at most one reply that avoids losing.
	IsForcing bool
}

// Options configures a single search call.
type Options struct {
	// TargetDepth is the search's internal depth budget (plies), opaque to
	// the generator beyond being passed through.
	TargetDepth int
	// TopK bounds how many candidates the adapter should return, best
	// first. Zero means the adapter's own default.
	TopK int
}

// Adapter is a position search engine. Given a position and the side to
// move, it returns ranked candidate replies. Implementations must be
// deterministic: the same board, side, and options must always yield the
// same candidates in the same order, so that book generation is
// reproducible (spec property 9).
type Adapter interface {
	Search(ctx context.Context, b board.Board, side board.Side, opt Options) ([]Candidate, error)
}

// HeuristicAdapter is a pure, deterministic reference Adapter: it scores
// every empty cell by the longest open line it would create or deny along
// the four board axes, in the manner of morlock's Material evaluator
// (sum of per-feature nominal values for the side to move, minus the
// opponent's). It does not search ahead; TargetDepth is accepted and
// ignored.
type HeuristicAdapter struct {
	// DefaultTopK is used when Options.TopK is zero.
	DefaultTopK int
}

// NewHeuristicAdapter returns a HeuristicAdapter with a sane default beam.
func NewHeuristicAdapter() *HeuristicAdapter {
	return &HeuristicAdapter{DefaultTopK: 8}
}

var axes = [4][2]int{
	{1, 0}, // horizontal
	{0, 1}, // vertical
	{1, 1}, // diagonal
	{1, -1}, // anti-diagonal
}

func (a *HeuristicAdapter) Search(ctx context.Context, b board.Board, side board.Side, opt Options) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topK := opt.TopK
	if topK <= 0 {
		topK = a.DefaultTopK
	}

	cands := make([]Candidate, 0, len(b.EmptyCells()))
	for _, m := range b.EmptyCells() {
		own, bestRun := ownScoreAndBestRun(b, m, side)
		opp := lineScore(b, m, side.Opponent())
		cands = append(cands, Candidate{
			Move:  m,
			Score: own*2 - opp,
			// A single static evaluation per empty cell, no lookahead: one
			// node, depth 0.
			Nodes:        1,
			DepthReached: 0,
			IsForcing:    bestRun >= 4,
		})
	}

	// Deterministic order: score descending, then row-major position as the
	// tie-break, matching the row-major order EmptyCells already produced.
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})

	if topK < len(cands) {
		cands = cands[:topK]
	}
	return cands, nil
}

// lineScore sums, over the four axes, the number of side's stones
// contiguous with m in each direction along that axis — a cheap proxy for
// how much placing at m would extend side's open lines.
func lineScore(b board.Board, m board.Move, side board.Side) int {
	total := 0
	for _, ax := range axes {
		total += runLength(b, m, ax[0], ax[1], side) + runLength(b, m, -ax[0], -ax[1], side)
	}
	return total
}

// ownScoreAndBestRun is lineScore plus bestRun: the longest contiguous run
// of side's stones that placing at m would complete along any single axis,
// counting m itself. A bestRun of 4 or more is an immediate four-in-a-row
// threat.
func ownScoreAndBestRun(b board.Board, m board.Move, side board.Side) (score, bestRun int) {
	for _, ax := range axes {
		fwd := runLength(b, m, ax[0], ax[1], side)
		bwd := runLength(b, m, -ax[0], -ax[1], side)
		score += fwd + bwd
		if combined := fwd + bwd + 1; combined > bestRun {
			bestRun = combined
		}
	}
	return score, bestRun
}

// runLength counts side's contiguous stones starting one step from m in
// direction (dx, dy), stopping at the board edge or an empty/opposing cell.
func runLength(b board.Board, m board.Move, dx, dy int, side board.Side) int {
	n := 0
	x, y := m.X+dx, m.Y+dy
	for x >= 0 && x < board.Size && y >= 0 && y < board.Size {
		s, ok := b.PlayerAt(x, y)
		if !ok || s != side {
			break
		}
		n++
		x += dx
		y += dy
	}
	return n
}
