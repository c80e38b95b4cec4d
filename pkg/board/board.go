package board

import "fmt"

// Board is an immutable two-plane position: one bitboard per side plus the
// cached direct Zobrist hash. Values are copied by assignment; Place never
// mutates the receiver or aliases its storage.
type Board struct {
	zt   *ZobristTable
	red  Bitboard
	blue Bitboard
	hash Hash
}

// New returns the empty board for the given Zobrist table.
func New(zt *ZobristTable) Board {
	return Board{zt: zt, hash: zt.Initial()}
}

// Hash returns the board's direct Zobrist hash (H_d), excluding side-to-move.
func (b Board) Hash() Hash {
	return b.hash
}

// IsEmpty reports whether (x, y) is unoccupied.
func (b Board) IsEmpty(x, y int) bool {
	return !b.red.Get(x, y) && !b.blue.Get(x, y)
}

// PlayerAt returns the side occupying (x, y), if any.
func (b Board) PlayerAt(x, y int) (Side, bool) {
	if b.red.Get(x, y) {
		return Red, true
	}
	if b.blue.Get(x, y) {
		return Blue, true
	}
	return 0, false
}

// TotalStones returns the number of stones placed on the board.
func (b Board) TotalStones() int {
	return b.red.PopCount() + b.blue.PopCount()
}

// Plane returns the bitboard for the given side.
func (b Board) Plane(side Side) Bitboard {
	if side == Red {
		return b.red
	}
	return b.blue
}

// Place returns a new Board with side's stone placed at (x, y). The cell
// must be empty; placing on an occupied or out-of-range cell is a caller
// bug signaled by a non-nil error rather than a panic.
func (b Board) Place(x, y int, side Side) (Board, error) {
	if x < 0 || x >= Size || y < 0 || y >= Size {
		return Board{}, fmt.Errorf("place (%d,%d): out of range [0,%d)", x, y, Size)
	}
	if !b.IsEmpty(x, y) {
		return Board{}, fmt.Errorf("place (%d,%d): cell occupied", x, y)
	}

	next := b
	if side == Red {
		next.red = b.red.With(x, y)
	} else {
		next.blue = b.blue.With(x, y)
	}
	next.hash = b.hash ^ b.zt.KeyOf(x, y, side)
	return next, nil
}

// OccupiedCells returns every occupied (x, y, side) triple. Order is
// deterministic: row-major.
func (b Board) OccupiedCells() []Occupant {
	var out []Occupant
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if side, ok := b.PlayerAt(x, y); ok {
				out = append(out, Occupant{X: x, Y: y, Side: side})
			}
		}
	}
	return out
}

// EmptyCells returns every unoccupied (x, y) cell, row-major.
func (b Board) EmptyCells() []Move {
	var out []Move
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if b.IsEmpty(x, y) {
				out = append(out, Move{X: x, Y: y})
			}
		}
	}
	return out
}

// Occupant is one occupied cell.
type Occupant struct {
	X, Y int
	Side Side
}

// Move identifies a cell to play: 0 <= X,Y < Size.
type Move struct {
	X, Y int
}

func (m Move) String() string {
	return fmt.Sprintf("(%d,%d)", m.X, m.Y)
}
