package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/lavantien/carobook/pkg/board"
	"github.com/lavantien/carobook/pkg/bookstore"
)

// inspectREPL is a read-only interactive browser over a generated book,
// grounded on the teacher's cmd/sloty REPL shape (liner prompt, history
// file, a small fixed command set) repurposed from a key/value cache
// shell into a book query tool.
type inspectREPL struct {
	store *bookstore.Store
	out   *IO
	liner *liner.State
}

func runInspect(o *IO, store *bookstore.Store, env map[string]string) int {
	r := &inspectREPL{store: store, out: o}
	if err := r.run(env); err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}
	return 0
}

func inspectHistoryFile(env map[string]string) string {
	home := env["HOME"]
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".carobook_inspect_history")
}

func (r *inspectREPL) run(env map[string]string) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	histPath := inspectHistoryFile(env)
	if f, err := os.Open(histPath); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	r.out.Println("carobook inspect - read-only book browser. Type 'help' for commands.")

	for {
		line, err := r.liner.Prompt("carobook> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				r.out.Println("bye")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "exit", "quit", "q":
			r.out.Println("bye")
			r.saveHistory(histPath)
			return nil
		case "help", "?":
			r.printHelp()
		case "get":
			r.cmdGet(parts[1:])
		case "stats":
			r.cmdStats()
		default:
			r.out.Printf("unknown command: %s (type 'help' for commands)\n", parts[0])
		}
	}

	r.saveHistory(histPath)
	return nil
}

func (r *inspectREPL) saveHistory(path string) {
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		_ = f.Close()
	}
}

func (r *inspectREPL) printHelp() {
	r.out.Println("commands:")
	r.out.Println("  get <canonical_hash> <direct_hash> <side>   look up an entry (side: red|blue)")
	r.out.Println("  stats                                       show store-wide statistics")
	r.out.Println("  help                                        show this help")
	r.out.Println("  exit | quit | q                              leave the REPL")
}

func (r *inspectREPL) cmdGet(args []string) {
	if len(args) != 3 {
		r.out.Println("usage: get <canonical_hash> <direct_hash> <side>")
		return
	}

	hc, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		r.out.Printf("invalid canonical hash: %v\n", err)
		return
	}
	hd, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		r.out.Printf("invalid direct hash: %v\n", err)
		return
	}

	var side board.Side
	switch strings.ToLower(args[2]) {
	case "red":
		side = board.Red
	case "blue":
		side = board.Blue
	default:
		r.out.Printf("invalid side %q: must be red or blue\n", args[2])
		return
	}

	entry, ok, err := r.store.GetExact(context.Background(), board.Hash(hc), board.Hash(hd), side)
	if err != nil {
		r.out.Printf("error: %v\n", err)
		return
	}
	if !ok {
		r.out.Println("not found")
		return
	}

	r.out.Printf("depth=%d symmetry=%s near_edge=%v total_moves=%d\n", entry.Depth, entry.Symmetry, entry.IsNearEdge, entry.TotalMoves)
	for _, m := range entry.Moves {
		r.out.Printf("  (%d,%d) score=%d priority=%d depth_achieved=%d\n", m.RelX, m.RelY, m.Score, m.Priority, m.DepthAchieved)
	}
}

func (r *inspectREPL) cmdStats() {
	stats, err := r.store.Statistics(context.Background())
	if err != nil {
		r.out.Printf("error: %v\n", err)
		return
	}
	r.out.Printf("entries=%d max_depth=%d total_moves=%d\n", stats.TotalEntries, stats.MaxDepth, stats.TotalMoves)
}
