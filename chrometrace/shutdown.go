package chrometrace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
)

// State is the position of the layer in its shutdown state machine.
type State int32

const (
	// StateRunning accepts records and flushes on every trigger.
	StateRunning State = iota
	// StateDraining ignores flush triggers and performs the final drain.
	StateDraining
	// StateClosed is terminal. The sink has been released.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrSinkClosed is returned by writes reaching a sink after ForceClose.
var ErrSinkClosed = errors.New("chrome trace sink closed")

// State reports where the layer is in its lifecycle.
func (l *ChromeLayer) State() State {
	return State(l.state.Load())
}

// Shutdown stops the flush task after a final drain, terminates the output
// document and closes the sink. Every record pushed before Shutdown was
// called is in the output when it returns nil.
//
// Shutdown waits for as long as the sink takes unless ctx expires first, in
// which case it returns ErrShutdownTimeout and the drain keeps running in
// the background; call ForceClose to release the sink at the cost of an
// unterminated document. Later calls wait for, and return, the result of
// the first.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	if err := layer.Shutdown(ctx); errors.Is(err, chrometrace.ErrShutdownTimeout) {
//	    _ = layer.ForceClose()
//	}
func (l *ChromeLayer) Shutdown(ctx context.Context) error {
	if l.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		l.logInfo(ctx, "shutting down chrome trace layer", nil, map[string]interface{}{
			"queue_depth": l.queue.Len(),
		})
		close(l.stopCh)
	}

	select {
	case <-l.done:
		return multierr.Append(l.Err(), l.closeErr)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

// ForceClose releases the sink without waiting for the drain. Writes still
// in flight fail with ErrSinkClosed and the document is left unterminated.
func (l *ChromeLayer) ForceClose() error {
	l.logWarn(context.Background(), "force closing chrome trace sink", nil, map[string]interface{}{
		"state":       l.State().String(),
		"queue_depth": l.queue.Len(),
	})
	return l.sink.Close()
}

// Err returns the first sink failure of the run, or nil.
func (l *ChromeLayer) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.firstErr
}

// finish runs on the flush task once shutdown has been signalled.
func (l *ChromeLayer) finish(ctx context.Context) {
	l.drainUntilQuiet(ctx)

	var errs error
	trailer := l.framer.trailer()
	if err := l.sink.Write(ctx, trailer); err != nil {
		l.stats.writeFailures.Add(1)
		l.recordSinkError(ctx, err, 0)
	} else {
		l.stats.bytesWritten.Add(int64(len(trailer)))
	}
	if err := l.sink.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to close chrome trace sink: %w", err))
	}

	l.closeErr = errs
	l.state.Store(int32(StateClosed))

	d := l.Diagnostics()
	l.logInfo(ctx, "chrome trace layer closed", errs, map[string]interface{}{
		"events_written":  d.EventsWritten,
		"bytes_written":   humanize.Bytes(uint64(d.BytesWritten)),
		"write_failures":  d.WriteFailures,
		"dropped":         d.DroppedOnWrite,
		"lookup_misses":   d.LookupMisses,
		"unmatched_exits": d.UnmatchedExits,
		"misnested":       d.Misnested,
	})
}

// guardedSink lets ForceClose race the flush task. Writes are not
// serialized against Close so a write blocked on a dead pipe can be
// interrupted by closing it.
type guardedSink struct {
	inner     Sink
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (g *guardedSink) Write(ctx context.Context, p []byte) error {
	if g.closed.Load() {
		return ErrSinkClosed
	}
	return g.inner.Write(ctx, p)
}

func (g *guardedSink) Close() error {
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		g.closeErr = g.inner.Close()
	})
	return g.closeErr
}
