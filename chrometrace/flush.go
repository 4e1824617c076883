package chrometrace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"
)

// framer turns drained records into the byte stream of the output document.
// It is owned by the flush task. Nothing is committed until the sink has
// accepted the bytes, so a failed write leaves the stream as if the batch
// had never been drained.
type framer struct {
	format  string
	opened  bool
	written int
	buf     bytes.Buffer
}

// frame renders events, with the document header if nothing has been
// written yet. It returns the payload, the number of records it holds and
// the number that could not be serialized.
func (f *framer) frame(events []TraceEvent) (payload []byte, n int, skipped int) {
	f.buf.Reset()
	if !f.opened {
		f.writeHeader()
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			skipped++
			continue
		}
		if f.written+n > 0 {
			f.buf.WriteString(",\n")
		}
		f.buf.Write(data)
		n++
	}
	if n == 0 {
		return nil, 0, skipped
	}
	return f.buf.Bytes(), n, skipped
}

func (f *framer) commit(n int) {
	f.opened = true
	f.written += n
}

// trailer renders the end of the document, opening it first if no batch
// ever reached the sink.
func (f *framer) trailer() []byte {
	f.buf.Reset()
	if !f.opened {
		f.writeHeader()
	}
	if f.format == FormatObject {
		f.buf.WriteString("\n],\"displayTimeUnit\":\"ms\"}\n")
	} else {
		f.buf.WriteString("\n]\n")
	}
	return f.buf.Bytes()
}

func (f *framer) writeHeader() {
	if f.format == FormatObject {
		f.buf.WriteString("{\"traceEvents\":[\n")
	} else {
		f.buf.WriteString("[\n")
	}
}

// run is the flush task. It owns the consumer end of the queue and is the
// only goroutine that talks to the sink.
func (l *ChromeLayer) run() {
	defer close(l.done)
	ctx := context.Background()

	for {
		select {
		case <-l.stopCh:
			l.finish(ctx)
			return
		default:
		}

		select {
		case <-l.clock.After(l.cfg.FlushInterval):
			l.flushPending(ctx)
		case ack := <-l.flushRequests:
			l.flushPending(ctx)
			close(ack)
		case <-l.stopCh:
			l.finish(ctx)
			return
		}
	}
}

// flushPending writes what was queued when it started. Records pushed while
// it runs wait for the next trigger so one flush cannot be held open by a
// busy producer.
func (l *ChromeLayer) flushPending(ctx context.Context) {
	pending := l.queue.Len()
	for pending > 0 {
		max := l.cfg.MaxBatchSize
		if pending < max {
			max = pending
		}
		batch := l.queue.DrainBatch(max)
		if len(batch) == 0 {
			break
		}
		pending -= len(batch)
		l.writeBatch(ctx, batch)
	}
	l.reportAnomalies()
}

// drainUntilQuiet empties the queue, including records whose push was
// still being linked when a drain came back empty. Two consecutive empty
// drains end it.
func (l *ChromeLayer) drainUntilQuiet(ctx context.Context) {
	empties := 0
	for empties < 2 {
		batch := l.queue.DrainBatch(l.cfg.MaxBatchSize)
		if len(batch) == 0 {
			empties++
			runtime.Gosched()
			continue
		}
		empties = 0
		l.writeBatch(ctx, batch)
	}
	l.reportAnomalies()
}

// writeBatch serializes and writes one batch with a single sink call. A
// batch the sink rejects is dropped; the next one starts the document over
// if the header never made it out.
func (l *ChromeLayer) writeBatch(ctx context.Context, batch []TraceEvent) {
	start := time.Now()
	payload, n, skipped := l.framer.frame(batch)
	if skipped > 0 {
		l.stats.serializationFailures.Add(int64(skipped))
		l.logWarn(ctx, "skipped records that could not be serialized", nil, map[string]interface{}{
			"skipped": skipped,
		})
	}
	if n == 0 {
		return
	}

	err := l.sink.Write(ctx, payload)
	l.observeOperation("write", time.Since(start), err, int64(len(payload)), map[string]interface{}{
		"records":     n,
		"queue_depth": l.queue.Len(),
	})
	if err != nil {
		l.stats.writeFailures.Add(1)
		l.stats.droppedOnWrite.Add(int64(n))
		l.recordSinkError(ctx, err, n)
		return
	}

	l.framer.commit(n)
	l.stats.eventsWritten.Add(int64(n))
	l.stats.batchesWritten.Add(1)
	l.stats.bytesWritten.Add(int64(len(payload)))
}

// recordSinkError surfaces the first sink failure through Err and an error
// log. Later failures are only logged as warnings.
func (l *ChromeLayer) recordSinkError(ctx context.Context, err error, records int) {
	fields := map[string]interface{}{"records": records}

	l.errMu.Lock()
	first := l.firstErr == nil
	if first {
		l.firstErr = fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	l.errMu.Unlock()

	if first {
		l.logError(ctx, "chrome trace sink write failed, continuing", err, fields)
		return
	}
	l.logWarn(ctx, "chrome trace sink write failed again", err, fields)
}

// reportAnomalies forwards counter growth since the last report to the
// observer. Producers only bump atomics; this keeps observer calls off
// their path.
func (l *ChromeLayer) reportAnomalies() {
	misses := l.stats.lookupMisses.Load()
	if d := misses - l.reported.lookupMisses; d > 0 {
		l.observeOperation("lookup_miss", 0, nil, d, nil)
		l.reported.lookupMisses = misses
	}
	misnested := l.stats.misnested.Load()
	if d := misnested - l.reported.misnested; d > 0 {
		l.observeOperation("misnest", 0, nil, d, map[string]interface{}{
			"policy": l.cfg.MisnestPolicy,
		})
		l.reported.misnested = misnested
	}
}
