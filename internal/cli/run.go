// Package cli implements the carobook command-line front end: flag
// parsing, signal-driven graceful shutdown, configuration loading, and
// dispatch to the generator pipeline or the interactive book inspector.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/bookstore"
	"github.com/lavantien/carobook/pkg/generator"
	"github.com/lavantien/carobook/pkg/search"
)

const shutdownGrace = 5 * time.Second

// Run is the process entry point. Returns the exit code.
// sigCh may be nil if signal handling is not needed (e.g. in tests).
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("carobook", flag.ContinueOnError)
	flags.SetInterspersed(true)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	flagHelp := flags.BoolP("help", "h", false, "Show help")
	flagOutput := flags.String("output", "", "Path to the opening-book SQLite file (default carobook.sqlite)")
	flagVerifyOnly := flags.Bool("verify-only", false, "Open the store, report its statistics, and exit without generating")
	flagDebug := flags.Bool("debug", false, "Enable debug-level logging regardless of CAROBOOK_LOG_LEVEL")
	flagConfig := flags.String("config", "", "Path to a JWCC (JSON-with-comments) policy config file")
	flagInspect := flags.Bool("inspect", false, "Open an interactive REPL for querying a generated book")
	flagMaxPly := flags.Int("max-ply", -1, "Override the generator's maximum ply (-1: use config/default)")

	if err := flags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, flags)
		return 1
	}

	if *flagHelp {
		printUsage(out, flags)
		return 0
	}

	if extra := flags.Args(); len(extra) > 0 {
		fprintln(errOut, "error: unrecognized arguments:", strings.Join(extra, " "))
		printUsage(errOut, flags)
		return 1
	}

	cfg, err := loadConfigFile(defaultRunConfig(), *flagConfig)
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}
	if *flagOutput != "" {
		cfg.Output = *flagOutput
	}
	if *flagMaxPly >= 0 {
		cfg.Generator.MaxPly = *flagMaxPly
	}

	logger := newRunLogger(env, *flagDebug)
	cio := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- dispatch(ctx, cio, logger, cfg, *flagVerifyOnly, *flagInspect, env)
	}()

	select {
	case exitCode := <-done:
		cio.Finish()
		return exitCode
	case <-sigCh:
		cio.ErrPrintln("shutting down with 5s timeout...")
		cancel()
	}

	select {
	case exitCode := <-done:
		cio.ErrPrintln("graceful shutdown ok")
		cio.Finish()
		return exitCode
	case <-time.After(shutdownGrace):
		cio.ErrPrintln("graceful shutdown timed out, forced exit (130)")
		return 130
	case <-sigCh:
		cio.ErrPrintln("graceful shutdown interrupted, forced exit (130)")
		return 130
	}
}

func dispatch(ctx context.Context, o *IO, logger *runLogger, cfg runConfig, verifyOnly, inspect bool, env map[string]string) int {
	storeOpts := bookstore.Options{ReadOnly: verifyOnly || inspect}

	store, migrated, err := bookstore.Open(ctx, cfg.Output, storeOpts)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}
	defer store.Close()

	if migrated {
		o.Warn("store schema at %s was migrated; prior entries were dropped", cfg.Output)
	}

	switch {
	case inspect:
		return runInspect(o, store, env)
	case verifyOnly:
		return runVerify(ctx, o, store)
	default:
		return runGenerate(ctx, o, logger, store, cfg)
	}
}

func runVerify(ctx context.Context, o *IO, store *bookstore.Store) int {
	stats, err := store.Statistics(ctx)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	o.Printf("entries: %d\n", stats.TotalEntries)
	o.Printf("max depth: %d\n", stats.MaxDepth)
	o.Printf("total moves: %d\n", stats.TotalMoves)
	for ply, count := range stats.PerPly {
		o.Printf("  ply %d: %d\n", ply, count)
	}
	return 0
}

func runGenerate(ctx context.Context, o *IO, logger *runLogger, store *bookstore.Store, cfg runConfig) int {
	zt := board.NewZobristTable(cfg.ZobristSeed)
	adapter := search.NewHeuristicAdapter()

	runID, err := stampRunID(ctx, store)
	if err != nil {
		o.Warn("could not stamp run id: %v", err)
	}

	logger.Infof(ctx, "starting generation run %s: max_ply=%d top_k=%v", runID, cfg.Generator.MaxPly, cfg.Generator.TopK)

	g := generator.New(zt, store, adapter, cfg.Generator)
	result, err := g.Run(ctx)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	logger.Infof(ctx, "generation run %s finished: positions=%d moves=%d elapsed=%s cancelled=%v",
		runID, result.PositionsGenerated, result.MovesStored, result.Elapsed, result.Cancelled)

	if err := writeRunSummary(cfg.Output, runID, result); err != nil {
		o.Warn("could not write run summary: %v", err)
	}

	printRunSummary(o, result)

	if result.Cancelled {
		o.Printf("run cancelled; store reflects a consistent partial result\n")
	}

	return 0
}

// printRunSummary prints the full run report spec.md §7 requires: positions
// generated/verified, moves stored, elapsed time, throughput, and the
// per-ply breakdown — on a cancelled run too, since the store still
// reflects a consistent partial result worth reporting.
func printRunSummary(o *IO, result generator.Result) {
	o.Printf("positions generated: %d\n", result.PositionsGenerated)
	o.Printf("positions verified: %d\n", result.PositionsVerified)
	o.Printf("moves stored: %d\n", result.MovesStored)
	o.Printf("elapsed: %s\n", result.Elapsed)

	seconds := result.Elapsed.Seconds()
	if seconds > 0 {
		positionsPerMin := 60 * float64(result.PositionsGenerated) / seconds
		nodesPerSec := float64(result.NodesSearched) / seconds
		o.Printf("throughput: %.1f positions/min, %.1f nodes/sec\n", positionsPerMin, nodesPerSec)
	}

	o.Printf("per-ply breakdown:\n")
	for ply, count := range result.PerPly {
		o.Printf("  ply %d: %d\n", ply, count)
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, flags *flag.FlagSet) {
	fprintln(w, "carobook - offline opening-book generator")
	fprintln(w)
	fprintln(w, "Usage: carobook [flags]")
	fprintln(w)
	fprintln(w, "Flags:")

	var buf strings.Builder
	flags.SetOutput(&buf)
	flags.PrintDefaults()
	fprintln(w, strings.TrimRight(buf.String(), "\n"))
}
