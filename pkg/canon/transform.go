// Package canon reduces a position to its canonical form under the board's
// eight-fold dihedral symmetry group, so that positions related by rotation
// or reflection collapse to a single opening-book entry.
package canon

import "github.com/lavantien/carobook/pkg/board"

// Transform identifies one element of the dihedral group D4 acting on the
// board. Ordinal order (Identity < Rot90 < ... < DiagB) is the tie-break
// used when two transforms produce the same canonical hash.
type Transform uint8

const (
	Identity Transform = iota
	Rot90
	Rot180
	Rot270
	FlipH
	FlipV
	DiagA
	DiagB

	numTransforms = int(DiagB) + 1
)

func (t Transform) String() string {
	switch t {
	case Identity:
		return "identity"
	case Rot90:
		return "rot90"
	case Rot180:
		return "rot180"
	case Rot270:
		return "rot270"
	case FlipH:
		return "fliph"
	case FlipV:
		return "flipv"
	case DiagA:
		return "diaga"
	case DiagB:
		return "diagb"
	default:
		return "unknown"
	}
}

// All returns the eight transforms in ordinal (tie-break) order.
func All() []Transform {
	return []Transform{Identity, Rot90, Rot180, Rot270, FlipH, FlipV, DiagA, DiagB}
}

// Apply maps a concrete board cell to its image under t.
func Apply(t Transform, m board.Move) board.Move {
	const last = board.Size - 1
	x, y := m.X, m.Y
	switch t {
	case Identity:
		return board.Move{X: x, Y: y}
	case Rot90:
		return board.Move{X: last - y, Y: x}
	case Rot180:
		return board.Move{X: last - x, Y: last - y}
	case Rot270:
		return board.Move{X: y, Y: last - x}
	case FlipH:
		return board.Move{X: last - x, Y: y}
	case FlipV:
		return board.Move{X: x, Y: last - y}
	case DiagA:
		return board.Move{X: y, Y: x}
	case DiagB:
		return board.Move{X: last - y, Y: last - x}
	default:
		return m
	}
}

// Inverse returns the transform that undoes t, so that
// Apply(Inverse(t), Apply(t, m)) == m for every cell m.
func Inverse(t Transform) Transform {
	switch t {
	case Rot90:
		return Rot270
	case Rot270:
		return Rot90
	default:
		// Identity, Rot180, and the four reflections are all self-inverse.
		return t
	}
}
