// Package generator implements the BFS-by-ply opening book generator: the
// pipeline that expands positions ply by ply, ranks candidate replies via a
// search.Adapter, reduces positions via pkg/canon, and persists the result
// through a bounded channel to a single writer goroutine.
package generator

import (
	"runtime"
	"time"
)

// TopKRange is one entry of a TopKPolicy: the beam width K applies to every
// ply in [MinPly, MaxPly].
type TopKRange struct {
	MinPly int
	MaxPly int
	K      int
}

// TopKPolicy is the per-ply beam schedule. It is always an explicit input,
// never a hard-coded constant: spec.md §9 requires the schedule be
// parameterized rather than guessed from a single observed choice.
type TopKPolicy []TopKRange

// KForPly returns the beam width for the given ply, or 1 if no range in the
// policy covers it — a conservative fallback that still keeps the single
// best move rather than dropping the position outright.
func (p TopKPolicy) KForPly(ply int) int {
	for _, r := range p {
		if ply >= r.MinPly && ply <= r.MaxPly {
			return r.K
		}
	}
	return 1
}

// Config holds the generator's run parameters.
type Config struct {
	MaxPly            int
	TargetSearchDepth int
	TopK              TopKPolicy
	WorkersOuter      int
	BatchSize         int
	FlushInterval     time.Duration
	ChannelCapacity   int
}

// DefaultConfig is a reasonable starting point; callers are expected to
// override TopK and MaxPly for a real run.
func DefaultConfig() Config {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	return Config{
		MaxPly:            6,
		TargetSearchDepth: 4,
		TopK: TopKPolicy{
			{MinPly: 0, MaxPly: 14, K: 4},
			{MinPly: 15, MaxPly: 24, K: 3},
			{MinPly: 25, MaxPly: 1 << 30, K: 2},
		},
		WorkersOuter:    workers,
		BatchSize:       50,
		FlushInterval:   5 * time.Second,
		ChannelCapacity: 1000,
	}
}

// Progress is a read-only snapshot of an in-flight or completed run.
type Progress struct {
	Ply                  int
	PositionsAtPlyDone   int64
	PositionsAtPlyTotal  int64
	PositionsEvaluated   int64
	PositionsStored      int64
	WriteBufferSize      int64
	PeakBufferSize       int64
	Flushes              int64
	CandidatesEvaluated  int64
	CandidatesPruned     int64
	EarlyExits           int64
	NodesSearched        int64
	StartedAt            time.Time
}

// PercentComplete returns PositionsAtPlyDone / PositionsAtPlyTotal for the
// current ply, or 0 if the total is not yet known.
func (p Progress) PercentComplete() float64 {
	if p.PositionsAtPlyTotal == 0 {
		return 0
	}
	return 100 * float64(p.PositionsAtPlyDone) / float64(p.PositionsAtPlyTotal)
}

// Result is the outcome of a Run call.
type Result struct {
	PositionsGenerated int64
	PositionsVerified  int64
	MovesStored        int64
	NodesSearched      int64
	Elapsed            time.Duration
	Cancelled          bool
	// PerPly[d] is the number of newly generated (not skipped-as-resumed)
	// positions processed at ply d.
	PerPly []int64
}
