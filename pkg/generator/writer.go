package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/lavantien/carobook/pkg/bookstore"
)

// barrier is a drain request: the generator sends one between plies so that
// every ply-d entry is flushed before ply-(d+1) successors are checked for
// resumability.
type barrier struct {
	ack chan struct{}
}

// writerMsg is the single channel's sum type: either a completed entry or a
// barrier request, so that ordering between the two is preserved by the
// channel's own FIFO discipline.
type writerMsg struct {
	entry   *bookstore.BookEntry
	barrier *barrier
}

// writer is the dedicated single consumer of the entries channel (C8). It
// buffers entries in memory and flushes via one transactional PutBatch when
// either the batch size or the flush interval is reached, and
// unconditionally on shutdown. It deliberately uses its own background
// context for store operations: once a worker has handed an entry to the
// channel it must not be lost to the generator's own cancellation, so the
// final drain-and-commit always runs to completion.
type writer struct {
	store         *bookstore.Store
	batchSize     int
	flushInterval time.Duration

	buf            []bookstore.BookEntry
	flushes        int64
	peakBufferSize int

	onFlush func(count, peak int, flushes int64)
}

func newWriter(store *bookstore.Store, batchSize int, flushInterval time.Duration) *writer {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &writer{store: store, batchSize: batchSize, flushInterval: flushInterval}
}

// run drains in until it is closed, then performs one final flush. It
// returns the first error encountered by PutBatch; once an error occurs the
// writer stops draining so the generator can observe it at the next
// checkpoint.
func (w *writer) run(in <-chan writerMsg) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return w.flush()
			}

			if msg.barrier != nil {
				err := w.flush()
				close(msg.barrier.ack)
				if err != nil {
					return err
				}
				continue
			}

			w.buf = append(w.buf, *msg.entry)
			if len(w.buf) > w.peakBufferSize {
				w.peakBufferSize = len(w.buf)
			}
			if len(w.buf) >= w.batchSize {
				if err := w.flush(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
}

func (w *writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	batch := w.buf
	w.buf = nil

	if err := w.store.PutBatch(context.Background(), batch); err != nil {
		return fmt.Errorf("writer: flush %d entries: %w", len(batch), err)
	}

	w.flushes++
	if w.onFlush != nil {
		w.onFlush(len(batch), w.peakBufferSize, w.flushes)
	}
	return nil
}
