package bookstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/canon"
)

// Store is a durable key/value surface over a single SQLite file: one
// writer, many concurrent readers in read-only opens, thread-safe for that
// usage because all serialization is left to the database engine itself.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Options configures Open.
type Options struct {
	// ReadOnly opens the store for queries only; Put/PutBatch/Clear/
	// SetMetadata return ErrReadOnly.
	ReadOnly bool
}

// Open initializes the store: creates the schema if absent, applies the
// storage tuning pragmas, and runs schema migration. migrated reports
// whether an older on-disk schema was dropped and recreated.
func Open(ctx context.Context, path string, opts Options) (s *Store, migrated bool, err error) {
	if path == "" {
		return nil, false, fmt.Errorf("open: path is empty")
	}

	db, err := openSQLite(ctx, path, opts.ReadOnly)
	if err != nil {
		return nil, false, err
	}

	if !opts.ReadOnly {
		migrated, err = migrateSchema(ctx, db)
		if err != nil {
			_ = db.Close()

			return nil, false, fmt.Errorf("open: migrate schema: %w", err)
		}
	}

	return &Store{db: db, path: path, readOnly: opts.ReadOnly}, migrated, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotOpen
	}
	return nil
}

// Put is an idempotent insert-or-replace keyed by the entry's compound
// primary key.
func (s *Store) Put(ctx context.Context, entry BookEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put: begin: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
	if err != nil {
		return fmt.Errorf("put: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	if err := execUpsert(ctx, stmt, entry); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put: commit: %w", err)
	}
	committed = true

	return nil
}

// PutBatch writes every entry in one transaction: all-or-nothing. A batch
// of length 0 is a no-op and does not open a transaction. Rollback is
// attempted only if commit did not succeed; after a successful commit no
// further rollback is attempted.
func (s *Store) PutBatch(ctx context.Context, entries []BookEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put_batch: begin: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
	if err != nil {
		return fmt.Errorf("put_batch: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range entries {
		if err := execUpsert(ctx, stmt, entries[i]); err != nil {
			return fmt.Errorf("put_batch: row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put_batch: commit: %w", err)
	}
	committed = true

	return nil
}

func execUpsert(ctx context.Context, stmt *sql.Stmt, entry BookEntry) error {
	blob, err := json.Marshal(entry.Moves)
	if err != nil {
		return fmt.Errorf("encode moves_blob: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = stmt.ExecContext(ctx,
		int64(entry.CanonicalHash),
		int64(entry.DirectHash),
		entry.Depth,
		int(entry.SideToMove),
		int(entry.Symmetry),
		boolToInt(entry.IsNearEdge),
		string(blob),
		entry.TotalMoves,
		createdAt.Format(time.RFC3339Nano),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Get returns an arbitrary entry matching canonical hash hc, for legacy
// callers only; it does not disambiguate side-to-move or direct hash. New
// code should call GetExact.
func (s *Store) Get(ctx context.Context, hc board.Hash) (BookEntry, bool, error) {
	return s.queryOne(ctx, "WHERE canonical_hash = ?", int64(hc))
}

// GetBySide returns an arbitrary entry matching (hc, side), for legacy
// callers only. New code should call GetExact.
func (s *Store) GetBySide(ctx context.Context, hc board.Hash, side board.Side) (BookEntry, bool, error) {
	return s.queryOne(ctx, "WHERE canonical_hash = ? AND side_to_move = ?", int64(hc), int(side))
}

// GetExact returns the unique entry for the compound primary key
// (hc, hd, side). This is the only form new code should call.
func (s *Store) GetExact(ctx context.Context, hc, hd board.Hash, side board.Side) (BookEntry, bool, error) {
	return s.queryOne(ctx, "WHERE canonical_hash = ? AND direct_hash = ? AND side_to_move = ?",
		int64(hc), int64(hd), int(side))
}

func (s *Store) queryOne(ctx context.Context, where string, args ...any) (BookEntry, bool, error) {
	if err := s.ready(); err != nil {
		return BookEntry{}, false, err
	}

	query := "SELECT " + selectEntryColumns + " FROM book_entry " + where + " LIMIT 1"
	row := s.db.QueryRowContext(ctx, query, args...)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BookEntry{}, false, nil
	}
	if err != nil {
		return BookEntry{}, false, fmt.Errorf("get: %w", err)
	}
	return entry, true, nil
}

// Contains mirrors Get, returning only whether a match exists.
func (s *Store) Contains(ctx context.Context, hc board.Hash) (bool, error) {
	_, ok, err := s.Get(ctx, hc)
	return ok, err
}

// ContainsBySide mirrors GetBySide.
func (s *Store) ContainsBySide(ctx context.Context, hc board.Hash, side board.Side) (bool, error) {
	_, ok, err := s.GetBySide(ctx, hc, side)
	return ok, err
}

// ContainsExact mirrors GetExact, returning only whether a match exists.
func (s *Store) ContainsExact(ctx context.Context, hc, hd board.Hash, side board.Side) (bool, error) {
	_, ok, err := s.GetExact(ctx, hc, hd, side)
	return ok, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (BookEntry, error) {
	var (
		canonicalHash int64
		directHash    int64
		depth         int
		sideToMove    int
		symmetry      int
		isNearEdge    int
		movesBlob     string
		totalMoves    int
		createdAtStr  string
	)

	err := row.Scan(&canonicalHash, &directHash, &depth, &sideToMove, &symmetry,
		&isNearEdge, &movesBlob, &totalMoves, &createdAtStr)
	if err != nil {
		return BookEntry{}, err
	}

	var moves []BookMove
	if err := json.Unmarshal([]byte(movesBlob), &moves); err != nil {
		return BookEntry{}, fmt.Errorf("decode moves_blob: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return BookEntry{}, fmt.Errorf("decode created_at: %w", err)
	}

	return BookEntry{
		CanonicalHash: board.Hash(uint64(canonicalHash)),
		DirectHash:    board.Hash(uint64(directHash)),
		Depth:         depth,
		SideToMove:    board.Side(sideToMove),
		Symmetry:      canon.Transform(symmetry),
		IsNearEdge:    isNearEdge != 0,
		Moves:         moves,
		TotalMoves:    totalMoves,
		CreatedAt:     createdAt,
	}, nil
}

// Statistics returns total entries, max depth stored, total move count, and
// the per-ply distribution.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	if err := s.ready(); err != nil {
		return Statistics{}, err
	}

	var stats Statistics

	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(MAX(depth), -1), COALESCE(SUM(total_moves), 0) FROM book_entry")

	var maxDepth int
	if err := row.Scan(&stats.TotalEntries, &maxDepth, &stats.TotalMoves); err != nil {
		return Statistics{}, fmt.Errorf("statistics: %w", err)
	}
	stats.MaxDepth = maxDepth

	if maxDepth < 0 {
		return stats, nil
	}

	stats.PerPly = make([]int64, maxDepth+1)

	rows, err := s.db.QueryContext(ctx, "SELECT depth, COUNT(*) FROM book_entry GROUP BY depth")
	if err != nil {
		return Statistics{}, fmt.Errorf("statistics: per-ply: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var depth int
		var count int64
		if err := rows.Scan(&depth, &count); err != nil {
			return Statistics{}, fmt.Errorf("statistics: scan: %w", err)
		}
		if depth >= 0 && depth < len(stats.PerPly) {
			stats.PerPly[depth] = count
		}
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, fmt.Errorf("statistics: rows: %w", err)
	}

	return stats, nil
}

// Clear deletes every book entry, leaving metadata untouched.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM book_entry")
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Flush compacts the on-disk file via VACUUM.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}

	_, err := s.db.ExecContext(ctx, "VACUUM")
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// SetMetadata records a key/value pair in the metadata table, e.g. the run
// id a generation run stamps. A generation run writes only that run id; no
// Version or GeneratedAt entry is written.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set_metadata: %w", err)
	}
	return nil
}

// GetMetadata reads a metadata value previously set by SetMetadata.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get_metadata: %w", err)
	}
	return value, true, nil
}
