package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/record/model"
)

func newDBTxExecutor(opts dbTxExecutorOptions, shutdownCh chan<- error) *dbTxExecutor {
	return &dbTxExecutor{opts: opts, shutdownCh: shutdownCh}
}

type dbTxExecutorOptions struct {
	flushSize int
	flushTime time.Duration
	deps      pullDependencies
}

// dbTxExecutor accumulates collected records and writes them in batches.
type dbTxExecutor struct {
	mtx sync.Mutex
	// held while a batch taken from buf is being written
	writeMtx sync.Mutex

	opts       dbTxExecutorOptions
	buf        []model.Record
	shutdownCh chan<- error
}

// shutdown writes whatever is still buffered.
func (tx *dbTxExecutor) shutdown() error {
	tx.writeMtx.Lock()
	defer tx.writeMtx.Unlock()
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	if len(tx.buf) == 0 {
		return nil
	}
	if err := tx.opts.deps.appendRecords(context.Background(), tx.buf); err != nil {
		return fmt.Errorf("txExecutor: append many operation failed: %w", err)
	}
	tx.buf = tx.buf[:0]
	return nil
}

// append buffers a record and triggers a write once the buffer is full.
func (tx *dbTxExecutor) append(ctx context.Context, record model.Record) {
	tx.mtx.Lock()
	tx.buf = append(tx.buf, record)
	bufLen := len(tx.buf)
	tx.mtx.Unlock()

	if bufLen >= tx.opts.flushSize {
		go tx.bulkAppend(ctx)
	}
}

// bulkAppend writes the buffer. It returns only after every batch taken
// from the buffer before it, including those written by other goroutines,
// is stored.
func (tx *dbTxExecutor) bulkAppend(ctx context.Context) {
	logger := logging.FromContext(ctx)

	tx.writeMtx.Lock()
	defer tx.writeMtx.Unlock()
	tx.mtx.Lock()
	if len(tx.buf) == 0 {
		tx.mtx.Unlock()
		return
	}
	tmpBuf := make([]model.Record, len(tx.buf))
	copy(tmpBuf, tx.buf)
	tx.buf = tx.buf[:0]
	tx.mtx.Unlock()

	if err := tx.opts.deps.appendRecords(context.Background(), tmpBuf); err != nil {
		logger.Errorf("txExecutor: append many operation failed, %d records lost: %v", len(tmpBuf), err)
	}
}

func (tx *dbTxExecutor) len() int {
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	return len(tx.buf)
}

// flusher writes the buffer every flushTime until stop is closed, then
// drains it and reports on shutdownCh.
func (tx *dbTxExecutor) flusher(ctx context.Context, stop <-chan struct{}) {
	defer func() {
		tx.shutdownCh <- tx.shutdown()
	}()
	ticker := time.NewTicker(tx.opts.flushTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tx.bulkAppend(ctx)
		case <-stop:
			return
		}
	}
}
