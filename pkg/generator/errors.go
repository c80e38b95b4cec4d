package generator

import "errors"

// ErrWriterAborted reports that the writer goroutine exited before a
// generation run completed, with no underlying PutBatch error recorded
// (should not normally happen; the writer always sets one before closing
// writerDone). Callers should use errors.Is(err, ErrWriterAborted).
var ErrWriterAborted = errors.New("generator: writer aborted")

// writerAbortErr reports why the writer goroutine is gone: its own error if
// it set one, ErrWriterAborted otherwise.
func writerAbortErr(writerErr error) error {
	if writerErr != nil {
		return writerErr
	}
	return ErrWriterAborted
}
