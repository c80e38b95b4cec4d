package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"

	"github.com/lavantien/carobook/pkg/generator"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// fileConfig is the JWCC (JSON-with-comments) shape of an optional
// --config file: the generator's policy, loadable ahead of CLI flag
// overrides so a run's parameters don't have to be re-typed by hand
// every invocation.
type fileConfig struct {
	Output            string          `json:"output,omitempty"`
	MaxPly            *int            `json:"max_ply,omitempty"`
	TargetSearchDepth *int            `json:"target_search_depth,omitempty"`
	WorkersOuter      *int            `json:"workers_outer,omitempty"`
	BatchSize         *int            `json:"batch_size,omitempty"`
	FlushIntervalSecs *int            `json:"flush_interval_seconds,omitempty"`
	ChannelCapacity   *int            `json:"channel_capacity,omitempty"`
	ZobristSeed       *int64          `json:"zobrist_seed,omitempty"`
	TopK              []topKRangeJSON `json:"top_k,omitempty"`
}

type topKRangeJSON struct {
	MinPly int `json:"min_ply"`
	MaxPly int `json:"max_ply"`
	K      int `json:"k"`
}

// runConfig is the fully resolved configuration for one invocation:
// defaults, overlaid by an optional config file, overlaid by CLI flags.
type runConfig struct {
	Output      string
	ZobristSeed int64
	Generator   generator.Config
}

func defaultRunConfig() runConfig {
	return runConfig{
		Output:      "carobook.sqlite",
		ZobristSeed: 1,
		Generator:   generator.DefaultConfig(),
	}
}

// loadConfigFile reads an optional JWCC config file and overlays its
// values onto cfg. An empty path is not an error; a path that cannot be
// read, or a present-but-invalid file, is.
func loadConfigFile(cfg runConfig, path string) (runConfig, error) {
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return cfg, fmt.Errorf("invalid JWCC in %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if fc.Output != "" {
		cfg.Output = fc.Output
	}
	if fc.ZobristSeed != nil {
		cfg.ZobristSeed = *fc.ZobristSeed
	}
	if fc.MaxPly != nil {
		cfg.Generator.MaxPly = *fc.MaxPly
	}
	if fc.TargetSearchDepth != nil {
		cfg.Generator.TargetSearchDepth = *fc.TargetSearchDepth
	}
	if fc.WorkersOuter != nil {
		cfg.Generator.WorkersOuter = *fc.WorkersOuter
	}
	if fc.BatchSize != nil {
		cfg.Generator.BatchSize = *fc.BatchSize
	}
	if fc.FlushIntervalSecs != nil {
		cfg.Generator.FlushInterval = secondsToDuration(*fc.FlushIntervalSecs)
	}
	if fc.ChannelCapacity != nil {
		cfg.Generator.ChannelCapacity = *fc.ChannelCapacity
	}
	if len(fc.TopK) > 0 {
		policy := make(generator.TopKPolicy, 0, len(fc.TopK))
		for _, r := range fc.TopK {
			policy = append(policy, generator.TopKRange{MinPly: r.MinPly, MaxPly: r.MaxPly, K: r.K})
		}
		cfg.Generator.TopK = policy
	}

	return cfg, nil
}
