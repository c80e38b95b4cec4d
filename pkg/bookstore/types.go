// Package bookstore is the durable key/value surface for the opening book:
// a compound-keyed mapping from (canonical hash, direct hash, side to move)
// to a ranked list of candidate moves, backed by SQLite.
package bookstore

import (
	"time"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/canon"
)

// BookMove is one ranked candidate move, stored relative to the canonical
// frame the position was reduced to.
type BookMove struct {
	RelX          int  `json:"rel_x"`
	RelY          int  `json:"rel_y"`
	WinRate       int  `json:"win_rate"` // 0-100
	DepthAchieved int  `json:"depth_achieved"`
	NodesSearched int64 `json:"nodes_searched"`
	Score         int  `json:"score"` // signed centi-unit
	IsForcing     bool `json:"is_forcing"`
	Priority      int  `json:"priority"` // higher = preferred
	IsVerified    bool `json:"is_verified"`
}

// BookEntry is the unit the store persists: one position, identified by its
// compound primary key, and the moves kept for it.
type BookEntry struct {
	CanonicalHash board.Hash
	DirectHash    board.Hash
	Depth         int
	SideToMove    board.Side
	Symmetry      canon.Transform
	IsNearEdge    bool
	Moves         []BookMove
	TotalMoves    int
	CreatedAt     time.Time
}

// Key returns the entry's compound primary key.
func (e BookEntry) Key() Key {
	return Key{CanonicalHash: e.CanonicalHash, DirectHash: e.DirectHash, SideToMove: e.SideToMove}
}

// Key is the store's compound primary key. H_c alone can collide, both from
// a genuine 64-bit Zobrist collision and because two distinct positions can
// share a canonical minimum via different transforms; H_d disambiguates
// within a canonical bucket.
type Key struct {
	CanonicalHash board.Hash
	DirectHash    board.Hash
	SideToMove    board.Side
}

// Statistics summarizes the store's current contents.
type Statistics struct {
	TotalEntries int
	MaxDepth     int
	TotalMoves   int64
	// PerPly is indexed 0..MaxDepth: PerPly[d] is the entry count at ply d.
	PerPly []int64
}
