package bookstore

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is stamped into PRAGMA user_version once the schema below
// has been created. Bumping it makes migrateSchema (run by a read-write
// Open) drop and recreate the tables on its next open against an older file.
const schemaVersion = 1

func openSQLite(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: path is empty")
	}

	dsn := path
	if readOnly {
		// mode=ro is a SQLite URI parameter: it only takes effect on a
		// file: URI, which also keeps a missing file from being created.
		dsn = "file:" + path + "?mode=ro"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db, readOnly)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

// applyPragmas carries the store's storage tuning hints: write-ahead
// logging, a synchronous level that trades some durability for throughput,
// a roughly 64 MiB page cache, and a multi-second busy timeout so that
// transient writer/reader lock contention resolves by waiting instead of
// failing outright.
func applyPragmas(ctx context.Context, db *sql.DB, readOnly bool) error {
	statements := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
	}
	if readOnly {
		// A read-only connection never writes, so WAL/synchronous tuning is
		// moot and busy_timeout is the only pragma worth forcing.
		statements = []string{"PRAGMA busy_timeout = 5000"}
	}

	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int

	err := row.Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

// migrateSchema creates the schema if absent. If an older schema version is
// found (one predating direct_hash), the table is dropped and recreated:
// entries written before direct_hash existed cannot be disambiguated within
// a canonical bucket and are discarded rather than carried forward
// half-valid. A migration failure is returned to the caller: Open closes
// the database and fails rather than proceeding with the current schema.
func migrateSchema(ctx context.Context, db *sql.DB) (migrated bool, err error) {
	version, err := userVersion(ctx, db)
	if err != nil {
		return false, err
	}

	if version == schemaVersion {
		return false, nil
	}

	var existingTables int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'book_entry'").Scan(&existingTables)
	if err != nil {
		return false, fmt.Errorf("migrate: inspect schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("migrate: begin: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := createSchema(ctx, tx); err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	if err != nil {
		return false, fmt.Errorf("migrate: set user_version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return false, fmt.Errorf("migrate: commit: %w", err)
	}

	committed = true

	return version != 0 || existingTables > 0, nil
}

func createSchema(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		"DROP TABLE IF EXISTS book_entry",
		"DROP TABLE IF EXISTS metadata",
		`CREATE TABLE book_entry (
			canonical_hash INTEGER NOT NULL,
			direct_hash    INTEGER NOT NULL,
			depth          INTEGER NOT NULL,
			side_to_move   INTEGER NOT NULL,
			symmetry       INTEGER NOT NULL,
			is_near_edge   INTEGER NOT NULL,
			moves_blob     TEXT NOT NULL,
			total_moves    INTEGER NOT NULL,
			created_at     TEXT NOT NULL,
			PRIMARY KEY (canonical_hash, direct_hash, side_to_move)
		) WITHOUT ROWID`,
		"CREATE INDEX idx_book_entry_depth ON book_entry(depth)",
		"CREATE INDEX idx_book_entry_side ON book_entry(side_to_move)",
		"CREATE INDEX idx_book_entry_canon_side ON book_entry(canonical_hash, side_to_move)",
		`CREATE TABLE metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		) WITHOUT ROWID`,
	}

	for _, stmt := range statements {
		_, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema statement %q: %w", stmt, err)
		}
	}

	return nil
}

const upsertEntrySQL = `
INSERT INTO book_entry (
	canonical_hash, direct_hash, depth, side_to_move, symmetry,
	is_near_edge, moves_blob, total_moves, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (canonical_hash, direct_hash, side_to_move) DO UPDATE SET
	depth = excluded.depth,
	symmetry = excluded.symmetry,
	is_near_edge = excluded.is_near_edge,
	moves_blob = excluded.moves_blob,
	total_moves = excluded.total_moves,
	created_at = excluded.created_at
`

const selectEntryColumns = `
	canonical_hash, direct_hash, depth, side_to_move, symmetry,
	is_near_edge, moves_blob, total_moves, created_at
`
