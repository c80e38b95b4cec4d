package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/bookstore"
	"github.com/lavantien/carobook/pkg/canon"
	"github.com/lavantien/carobook/pkg/search"
)

// Generator drives BFS-by-ply opening book generation against a store,
// using a Zobrist table threaded through explicitly (spec.md §9: no
// process-wide singleton) and a search.Adapter treated as a black box.
type Generator struct {
	zt      *board.ZobristTable
	store   *bookstore.Store
	adapter search.Adapter
	cfg     Config

	mu        sync.Mutex
	progress  Progress
	entriesCh chan writerMsg

	// writerDone is closed by Run's writer goroutine the instant w.run
	// returns, whether from a clean shutdown or a PutBatch failure. The
	// main loop and every worker select on it alongside ctx so a writer
	// failure unwinds the whole pipeline promptly instead of leaving a
	// send or an ack-wait blocked forever (spec.md §4.8/§7: a shared
	// error signal workers observe at their next checkpoint).
	writerDone chan struct{}
}

// New builds a Generator. The Zobrist table, store, and adapter are owned
// by the caller and must outlive the Generator.
func New(zt *board.ZobristTable, store *bookstore.Store, adapter search.Adapter, cfg Config) *Generator {
	if cfg.WorkersOuter < 1 {
		cfg.WorkersOuter = 1
	}
	if cfg.ChannelCapacity < 1 {
		cfg.ChannelCapacity = 1000
	}
	return &Generator{zt: zt, store: store, adapter: adapter, cfg: cfg}
}

// Progress returns a snapshot of the generator's current state. Safe to
// call concurrently with Run; occasional tearing between unrelated counters
// is acceptable since the snapshot is diagnostic only.
func (g *Generator) Progress() Progress {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := g.progress
	if g.entriesCh != nil {
		snap.WriteBufferSize = int64(len(g.entriesCh))
	}
	return snap
}

// sideAtPly returns the side to move at the given ply: the first mover
// plays even plies, the second odd plies.
func sideAtPly(ply int) board.Side {
	if ply%2 == 0 {
		return board.Red
	}
	return board.Blue
}

type task struct {
	b   board.Board
	key bookstore.Key
	res canon.Result
}

// Run expands frontier_0 = {empty board} ply by ply up to cfg.MaxPly,
// terminating early if the frontier empties or ctx is cancelled. It never
// loses an entry once a worker has handed it to the writer: cancellation
// only stops new work from being scheduled, the writer always performs a
// final drain-and-commit.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	entries := make(chan writerMsg, g.cfg.ChannelCapacity)
	writerDone := make(chan struct{})

	g.mu.Lock()
	g.progress = Progress{StartedAt: start}
	g.entriesCh = entries
	g.writerDone = writerDone
	g.mu.Unlock()

	var result Result
	w := newWriter(g.store, g.cfg.BatchSize, g.cfg.FlushInterval)
	w.onFlush = func(count, peak int, flushes int64) {
		g.mu.Lock()
		g.progress.Flushes = flushes
		g.progress.PeakBufferSize = int64(peak)
		g.mu.Unlock()
	}

	// writerErr is written exactly once by the writer goroutine before it
	// closes writerDone; every read of it here happens only after observing
	// writerDone closed, so the channel close supplies the happens-before
	// edge and no mutex is needed.
	var writerErr error
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		defer close(writerDone)
		writerErr = w.run(entries)
	}()

	var runErr error
	frontier := []board.Board{board.New(g.zt)}

ply:
	for ply := 0; ply <= g.cfg.MaxPly && len(frontier) > 0; ply++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		select {
		case <-writerDone:
			runErr = fmt.Errorf("ply %d: %w", ply, writerAbortErr(writerErr))
			break ply
		default:
		}

		side := sideAtPly(ply)

		dedup, order, resumed, err := g.dedupFrontier(ctx, frontier, side)
		if err != nil {
			runErr = fmt.Errorf("ply %d: %w", ply, err)
			break
		}

		g.mu.Lock()
		g.progress.Ply = ply
		g.progress.PositionsAtPlyDone = 0
		g.progress.PositionsAtPlyTotal = int64(len(order))
		g.mu.Unlock()

		successors := append(resumed, g.expandPly(ctx, order, dedup, side, ply, entries)...)

		// Ply-boundary drain barrier: every ply-d entry must be flushed
		// before ply-(d+1) successors are checked for resumability. If the
		// writer has already died, sending never happens or the ack never
		// arrives; writerDone unblocks both so the run fails promptly
		// instead of hanging.
		ack := make(chan struct{})
		g.trySend(entries, writerMsg{barrier: &barrier{ack: ack}})
		acked := false
		select {
		case <-ack:
			acked = true
		case <-writerDone:
		}
		if !acked {
			runErr = fmt.Errorf("ply %d: %w", ply, writerAbortErr(writerErr))
			break
		}

		result.PositionsGenerated += int64(len(order))
		result.PerPly = append(result.PerPly, int64(len(order)))

		frontier = successors

		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
	}

	close(entries)
	writerWG.Wait()

	if writerErr != nil && runErr == nil {
		runErr = writerErr
	}

	result.Elapsed = time.Since(start)

	g.mu.Lock()
	result.NodesSearched = g.progress.NodesSearched
	g.mu.Unlock()

	if stats, err := g.store.Statistics(context.Background()); err == nil {
		result.MovesStored = stats.TotalMoves
		result.PositionsVerified = int64(stats.TotalEntries)
	}

	return result, runErr
}

// dedupFrontier canonicalizes each board in frontier, collapses duplicate
// pkeys within this ply, and skips positions already present in the store
// (resumability: spec property 9). order preserves first-seen order for
// deterministic ply processing. A pkey already present in the store is not
// rescheduled, but its previously computed moves are replayed to rebuild
// the successor frontier — a restarted run must keep expanding past
// already-generated plies, not merely avoid redoing them.
func (g *Generator) dedupFrontier(ctx context.Context, frontier []board.Board, side board.Side) (dedup map[bookstore.Key]task, order []bookstore.Key, resumed []board.Board, err error) {
	dedup = make(map[bookstore.Key]task, len(frontier))
	order = make([]bookstore.Key, 0, len(frontier))

	seen := make(map[bookstore.Key]bool, len(frontier))

	for _, b := range frontier {
		res := canon.Canonicalize(g.zt, b)
		// The direct hash of the canonical frame is, by construction, the
		// hash value that achieved the canonicalizer's minimum (or, for a
		// near-edge position, H_d(b) itself) — see DESIGN.md for why this
		// is a real mathematical identity rather than a simplification.
		key := bookstore.Key{CanonicalHash: res.Hash, DirectHash: res.Hash, SideToMove: side}

		if seen[key] {
			continue
		}
		seen[key] = true

		existing, found, err := g.store.GetExact(ctx, key.CanonicalHash, key.DirectHash, key.SideToMove)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("contains check: %w", err)
		}
		if found {
			resumed = append(resumed, successorsFromEntry(b, existing, side)...)
			continue
		}

		dedup[key] = task{b: b, key: key, res: res}
		order = append(order, key)
	}

	return dedup, order, resumed, nil
}

// successorsFromEntry rebuilds the concrete successor boards implied by an
// already-stored entry's canonical-frame moves, so a resumed run continues
// expanding the frontier without re-invoking the search adapter.
func successorsFromEntry(b board.Board, e bookstore.BookEntry, side board.Side) []board.Board {
	out := make([]board.Board, 0, len(e.Moves))
	for _, m := range e.Moves {
		concrete := canon.Apply(canon.Inverse(e.Symmetry), board.Move{X: m.RelX, Y: m.RelY})
		nb, err := b.Place(concrete.X, concrete.Y, side)
		if err != nil {
			continue
		}
		out = append(out, nb)
	}
	return out
}

// trySend hands msg to entries unless the writer has already died, in which
// case it gives up and reports failure rather than blocking forever against
// a channel nobody is draining.
func (g *Generator) trySend(entries chan<- writerMsg, msg writerMsg) bool {
	select {
	case entries <- msg:
		return true
	case <-g.writerDone:
		return false
	}
}

// expandPly processes dedup[order...] across a bounded pool of W_outer
// workers, emitting one entry per position with moves onto entries, and
// returns the pooled successor boards for the next ply.
func (g *Generator) expandPly(ctx context.Context, order []bookstore.Key, dedup map[bookstore.Key]task, side board.Side, ply int, entries chan<- writerMsg) []board.Board {
	sem := make(chan struct{}, g.cfg.WorkersOuter)

	var (
		wg         sync.WaitGroup
		succMu     sync.Mutex
		successors []board.Board
	)

	topK := g.cfg.TopK.KForPly(ply)

	for _, key := range order {
		if ctx.Err() != nil {
			break
		}

		writerGone := false
		select {
		case <-g.writerDone:
			writerGone = true
		default:
		}
		if writerGone {
			// No point scheduling more work once the writer is gone: any
			// entry it produces can never be persisted.
			break
		}

		t := dedup[key]

		sem <- struct{}{}
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			defer func() { <-sem }()

			g.processPosition(ctx, t, side, ply, topK, entries, &succMu, &successors)
		}(t)
	}

	wg.Wait()
	return successors
}

func (g *Generator) processPosition(ctx context.Context, t task, side board.Side, ply, topK int, entries chan<- writerMsg, succMu *sync.Mutex, successors *[]board.Board) {
	if ctx.Err() != nil {
		return
	}
	select {
	case <-g.writerDone:
		return
	default:
	}

	ranked, err := g.adapter.Search(ctx, t.b, side, search.Options{
		TargetDepth: g.cfg.TargetSearchDepth,
		TopK:        topK,
	})
	if err != nil {
		// Search adapter failure: the position is skipped and counted in
		// EarlyExits, and the pipeline continues. The failure is not logged.
		g.mu.Lock()
		g.progress.EarlyExits++
		g.mu.Unlock()
		return
	}

	g.mu.Lock()
	g.progress.CandidatesEvaluated += int64(len(ranked))
	g.progress.PositionsEvaluated++
	g.mu.Unlock()

	if topK > 0 && topK < len(ranked) {
		g.mu.Lock()
		g.progress.CandidatesPruned += int64(len(ranked) - topK)
		g.mu.Unlock()
		ranked = ranked[:topK]
	}

	if len(ranked) == 0 {
		g.bumpPlyDone()
		return
	}

	moves := make([]bookstore.BookMove, 0, len(ranked))
	for i, c := range ranked {
		rel := canon.Apply(t.res.Transform, c.Move)
		moves = append(moves, bookstore.BookMove{
			RelX:          rel.X,
			RelY:          rel.Y,
			DepthAchieved: c.DepthReached,
			NodesSearched: c.Nodes,
			Score:         c.Score,
			IsForcing:     c.IsForcing,
			Priority:      len(ranked) - i,
		})
	}

	entry := bookstore.BookEntry{
		CanonicalHash: t.key.CanonicalHash,
		DirectHash:    t.key.DirectHash,
		Depth:         ply,
		SideToMove:    side,
		Symmetry:      t.res.Transform,
		IsNearEdge:    t.res.NearEdge,
		Moves:         moves,
		TotalMoves:    len(moves),
	}

	// Handing the entry to the bounded channel is the point of no return
	// against cancellation: once the writer is alive and draining, this
	// send never loses the result (spec §5/§7 "no entry may be lost after
	// a worker hands it to the channel"). It only aborts if the writer
	// itself has already died, in which case the entry's fate no longer
	// matters: Run is already unwinding with an error.
	if !g.trySend(entries, writerMsg{entry: &entry}) {
		return
	}

	var nodes int64
	for _, m := range moves {
		nodes += m.NodesSearched
	}

	g.mu.Lock()
	g.progress.PositionsStored++
	g.progress.NodesSearched += nodes
	g.mu.Unlock()

	for _, c := range ranked {
		nb, err := t.b.Place(c.Move.X, c.Move.Y, side)
		if err != nil {
			continue
		}
		succMu.Lock()
		*successors = append(*successors, nb)
		succMu.Unlock()
	}

	g.bumpPlyDone()
}

func (g *Generator) bumpPlyDone() {
	g.mu.Lock()
	g.progress.PositionsAtPlyDone++
	g.mu.Unlock()
}
