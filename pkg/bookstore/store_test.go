package bookstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/bookstore"
	"github.com/lavantien/carobook/pkg/canon"
)

func openTestStore(t *testing.T) *bookstore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "book.sqlite")

	s, _, err := bookstore.Open(context.Background(), path, bookstore.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func sampleEntry(hc, hd board.Hash, side board.Side, depth int) bookstore.BookEntry {
	return bookstore.BookEntry{
		CanonicalHash: hc,
		DirectHash:    hd,
		Depth:         depth,
		SideToMove:    side,
		Symmetry:      canon.Identity,
		IsNearEdge:    false,
		Moves: []bookstore.BookMove{
			{RelX: 1, RelY: 2, WinRate: 55, DepthAchieved: 6, NodesSearched: 1000, Score: 42, Priority: 1},
		},
		TotalMoves: 1,
		CreatedAt:  time.Unix(0, 0).UTC(),
	}
}

func Test_Put_Then_Get_Round_Trips(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	want := sampleEntry(100, 200, board.Red, 3)

	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.GetExact(ctx, want.CanonicalHash, want.DirectHash, want.SideToMove)
	if err != nil {
		t.Fatalf("get_exact: %v", err)
	}
	if !ok {
		t.Fatal("get_exact: expected a match")
	}

	if got.Depth != want.Depth || got.TotalMoves != want.TotalMoves {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Moves) != 1 || got.Moves[0] != want.Moves[0] {
		t.Fatalf("moves did not round-trip: got %+v", got.Moves)
	}
}

func Test_Put_Is_Idempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry(1, 2, board.Red, 0)

	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("put 1: %v", err)
	}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("put 2: %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 1 {
		t.Fatalf("expected exactly one entry after repeated put, got %d", stats.TotalEntries)
	}
}

func Test_PutBatch_Of_Zero_Is_A_No_Op(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutBatch(ctx, nil); err != nil {
		t.Fatalf("put_batch(nil): %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Fatalf("expected no entries, got %d", stats.TotalEntries)
	}
}

func Test_PutBatch_Writes_Every_Entry(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	good1 := sampleEntry(1, 1, board.Red, 0)
	good2 := sampleEntry(2, 2, board.Red, 1)

	if err := s.PutBatch(ctx, []bookstore.BookEntry{good1, good2}); err != nil {
		t.Fatalf("put_batch: %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 2 {
		t.Fatalf("expected 2 entries, got %d", stats.TotalEntries)
	}
}

func Test_GetExact_Disambiguates_Canonical_Hash_Collision(t *testing.T) {
	// S7: two distinct positions sharing a canonical hash must remain
	// individually addressable via the three-argument form.
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	e1 := sampleEntry(500, 111, board.Red, 2)
	e2 := sampleEntry(500, 222, board.Blue, 2)

	if err := s.PutBatch(ctx, []bookstore.BookEntry{e1, e2}); err != nil {
		t.Fatalf("put_batch: %v", err)
	}

	got1, ok, err := s.GetExact(ctx, 500, 111, board.Red)
	if err != nil || !ok {
		t.Fatalf("get_exact e1: ok=%v err=%v", ok, err)
	}
	if got1.DirectHash != 111 {
		t.Fatalf("expected e1's direct hash, got %d", got1.DirectHash)
	}

	got2, ok, err := s.GetExact(ctx, 500, 222, board.Blue)
	if err != nil || !ok {
		t.Fatalf("get_exact e2: ok=%v err=%v", ok, err)
	}
	if got2.DirectHash != 222 {
		t.Fatalf("expected e2's direct hash, got %d", got2.DirectHash)
	}

	// The ambiguous single-argument form must return one of the two,
	// arbitrarily.
	arbitrary, ok, err := s.Get(ctx, 500)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if arbitrary.DirectHash != 111 && arbitrary.DirectHash != 222 {
		t.Fatalf("get returned an entry outside the collision bucket: %+v", arbitrary)
	}
}

func Test_Statistics_Reports_Per_Ply_Distribution(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	entries := []bookstore.BookEntry{
		sampleEntry(1, 1, board.Red, 0),
		sampleEntry(2, 2, board.Blue, 1),
		sampleEntry(3, 3, board.Red, 1),
	}
	if err := s.PutBatch(ctx, entries); err != nil {
		t.Fatalf("put_batch: %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 3 || stats.MaxDepth != 1 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
	if len(stats.PerPly) != 2 || stats.PerPly[0] != 1 || stats.PerPly[1] != 2 {
		t.Fatalf("unexpected per-ply distribution: %+v", stats.PerPly)
	}
}

func Test_Clear_Removes_Entries_But_Keeps_Metadata(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, sampleEntry(1, 1, board.Red, 0)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.SetMetadata(ctx, "Version", "1"); err != nil {
		t.Fatalf("set_metadata: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Fatalf("expected empty store after clear, got %d entries", stats.TotalEntries)
	}

	v, ok, err := s.GetMetadata(ctx, "Version")
	if err != nil || !ok || v != "1" {
		t.Fatalf("expected metadata to survive clear, got v=%q ok=%v err=%v", v, ok, err)
	}
}

func Test_Metadata_Round_Trips_And_Overwrites(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetMetadata(ctx, "RunID", "abc"); err != nil {
		t.Fatalf("set_metadata: %v", err)
	}
	if err := s.SetMetadata(ctx, "RunID", "xyz"); err != nil {
		t.Fatalf("set_metadata overwrite: %v", err)
	}

	v, ok, err := s.GetMetadata(ctx, "RunID")
	if err != nil || !ok || v != "xyz" {
		t.Fatalf("expected overwritten value, got v=%q ok=%v err=%v", v, ok, err)
	}

	_, ok, err = s.GetMetadata(ctx, "NoSuchKey")
	if err != nil {
		t.Fatalf("get_metadata missing key: %v", err)
	}
	if ok {
		t.Fatal("expected no match for an unset key")
	}
}

// Test_PutBatch_Failed_Batch_Leaves_No_Rows covers S5: a batch that fails
// leaves none of its rows visible, and a subsequent valid retry of the same
// batch succeeds. Since every BookEntry field here is a plain Go value,
// encoding/json can never fail to marshal one (there is no payload shape
// that reproduces a literal serialization error); the failure is instead
// induced by an already-cancelled context, which makes PutBatch fail
// before it can begin its transaction, so no row is ever written.
func Test_PutBatch_Failed_Batch_Leaves_No_Rows(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := []bookstore.BookEntry{
		sampleEntry(1, 1, board.Red, 0),
		sampleEntry(2, 2, board.Blue, 0),
		sampleEntry(3, 3, board.Red, 1),
	}

	if err := s.PutBatch(ctx, batch); err == nil {
		t.Fatal("expected put_batch against a cancelled context to fail")
	}

	stats, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Fatalf("expected no entries after a rolled-back batch, got %d", stats.TotalEntries)
	}

	if err := s.PutBatch(context.Background(), batch); err != nil {
		t.Fatalf("retry put_batch: %v", err)
	}

	stats, err = s.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalEntries != 3 {
		t.Fatalf("expected 3 entries after the valid retry, got %d", stats.TotalEntries)
	}
}

func Test_ReadOnly_Open_Rejects_Writes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.sqlite")
	ctx := context.Background()

	rw, _, err := bookstore.Open(ctx, path, bookstore.Options{})
	if err != nil {
		t.Fatalf("open rw: %v", err)
	}
	if err := rw.Put(ctx, sampleEntry(1, 1, board.Red, 0)); err != nil {
		t.Fatalf("seed put: %v", err)
	}
	_ = rw.Close()

	ro, _, err := bookstore.Open(ctx, path, bookstore.Options{ReadOnly: true})
	if err != nil {
		t.Fatalf("open ro: %v", err)
	}
	defer func() { _ = ro.Close() }()

	if err := ro.Put(ctx, sampleEntry(2, 2, board.Red, 0)); err == nil {
		t.Fatal("expected write against a read-only store to fail")
	}

	_, ok, err := ro.GetExact(ctx, 1, 1, board.Red)
	if err != nil || !ok {
		t.Fatalf("expected read-only store to still read seeded data: ok=%v err=%v", ok, err)
	}
}
