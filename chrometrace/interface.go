package chrometrace

import "context"

// Layer is the span lifecycle subscriber a host tracing framework drives.
//
// Callbacks never block on I/O and never return errors. They may be invoked
// concurrently from any goroutine, and for a single span in the order
// new, (enter, exit)*, close.
//
// This interface is implemented by the concrete *ChromeLayer type.
type Layer interface {
	// OnNewSpan registers a span under id. Nothing is written until the
	// span is entered.
	OnNewSpan(ctx context.Context, id SpanID, attrs SpanAttributes)

	// OnEnter records a Begin for id on the calling thread.
	OnEnter(ctx context.Context, id SpanID)

	// OnExit records the End matching the most recent Begin of id.
	OnExit(ctx context.Context, id SpanID)

	// OnClose forgets id, ending any interval still open.
	OnClose(ctx context.Context, id SpanID)

	// OnEvent records an instant event on the calling thread.
	OnEvent(ctx context.Context, ev Event)

	// SetThreadName records a thread_name metadata record for tid.
	SetThreadName(tid ThreadID, name string)

	// Flush writes everything enqueued before the call.
	Flush(ctx context.Context) error

	// Shutdown drains the queue, terminates the document and closes the
	// sink. Only the first call performs the work.
	Shutdown(ctx context.Context) error

	// Diagnostics returns the layer's counters.
	Diagnostics() Diagnostics
}

// SpanAttributes is the data a host hands over when a span is created.
type SpanAttributes struct {
	Name     string
	Category string

	// Parent is the enclosing span, zero for a root span.
	Parent SpanID

	// Fields become args in declaration order. The key "event" with value
	// "async" selects async records instead of Begin and End.
	Fields []Field
}

// Sink receives encoded output. Write is only ever called from the flush
// task, with each call carrying a whole batch.
//
// The sink package provides file, writer, MinIO and Kafka sinks.
type Sink interface {
	Write(ctx context.Context, p []byte) error
	Close() error
}
