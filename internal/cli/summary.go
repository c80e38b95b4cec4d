package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/lavantien/carobook/pkg/bookstore"
	"github.com/lavantien/carobook/pkg/generator"
)

const metadataRunIDKey = "last_run_id"

// stampRunID generates a fresh identifier for this invocation and records
// it in the store's metadata table, so a later --inspect session or a
// manual SQL query can correlate entries with the run summary file.
func stampRunID(ctx context.Context, store *bookstore.Store) (string, error) {
	id := uuid.NewString()
	if err := store.SetMetadata(ctx, metadataRunIDKey, id); err != nil {
		return id, fmt.Errorf("stamp run id: %w", err)
	}
	return id, nil
}

type runSummary struct {
	RunID              string  `json:"run_id"`
	PositionsGenerated int64   `json:"positions_generated"`
	PositionsVerified  int64   `json:"positions_verified"`
	MovesStored        int64   `json:"moves_stored"`
	NodesSearched      int64   `json:"nodes_searched"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	Cancelled          bool    `json:"cancelled"`
	PerPly             []int64 `json:"per_ply"`
}

// writeRunSummary writes a small JSON summary of the run next to the
// store file, using atomic.WriteFile so a crash mid-write never leaves a
// half-written summary behind.
func writeRunSummary(storePath, runID string, result generator.Result) error {
	summary := runSummary{
		RunID:              runID,
		PositionsGenerated: result.PositionsGenerated,
		PositionsVerified:  result.PositionsVerified,
		MovesStored:        result.MovesStored,
		NodesSearched:      result.NodesSearched,
		ElapsedSeconds:     result.Elapsed.Seconds(),
		Cancelled:          result.Cancelled,
		PerPly:             result.PerPly,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	path := storePath + ".summary.json"
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("write run summary %s: %w", path, err)
	}
	return nil
}
