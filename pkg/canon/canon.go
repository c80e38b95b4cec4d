package canon

import "github.com/lavantien/carobook/pkg/board"

// edgeGuard is the distance (in cells) from any edge within which a stone
// forces canonicalization to suppress to Identity: near an edge, the eight
// transforms are no longer equivalent from the generator's point of view
// (a move that hugs one edge is not interchangeable with the same move
// hugging another), so folding them together would merge positions that
// should stay distinct book entries.
const edgeGuard = 2

// Result is the outcome of canonicalizing one position.
type Result struct {
	Hash      board.Hash
	Transform Transform
	NearEdge  bool
}

// Canonicalize computes the canonical hash H_c of b: the minimum, over the
// eight dihedral transforms, of the direct hash of the transformed
// position, tie-broken by transform ordinal. If any stone lies within
// edgeGuard cells of an edge, the result is suppressed to Identity instead.
func Canonicalize(zt *board.ZobristTable, b board.Board) Result {
	occ := b.OccupiedCells()

	if nearEdge(occ) {
		return Result{Hash: b.Hash(), Transform: Identity, NearEdge: true}
	}

	best := Result{Hash: 0, Transform: Identity}
	for i, t := range All() {
		h := transformedHash(zt, occ, t)
		if i == 0 || h < best.Hash {
			best = Result{Hash: h, Transform: t}
		}
	}
	return best
}

// transformedHash computes the direct hash the board would have if every
// occupied cell were moved to its image under t, without materializing a
// transformed Board.
func transformedHash(zt *board.ZobristTable, occ []board.Occupant, t Transform) board.Hash {
	h := zt.Initial()
	for _, o := range occ {
		m := Apply(t, board.Move{X: o.X, Y: o.Y})
		h ^= zt.KeyOf(m.X, m.Y, o.Side)
	}
	return h
}

func nearEdge(occ []board.Occupant) bool {
	const far = board.Size - edgeGuard
	for _, o := range occ {
		if o.X < edgeGuard || o.X >= far || o.Y < edgeGuard || o.Y >= far {
			return true
		}
	}
	return false
}
