// Package chrometrace records span lifecycle callbacks as a Chrome Trace
// Event Format document that chrome://tracing, Perfetto and speedscope can
// open.
//
// # Architecture
//
// A host tracing framework drives a Layer through its callbacks. Each
// callback flows through four stages:
//
//   - Resolver: timestamp in microseconds from the layer epoch, the thread
//     pinned with WithThreadID or given by a ThreadSource, and the process id
//   - Registry: sharded table of open spans and per-thread span stacks
//   - Encoder: pure translation of a callback into Begin, End, instant,
//     async and metadata records
//   - Queue: lock-free multi-producer queue the flush task drains
//
// The flush task is the only goroutine doing I/O. It drains the queue on
// Config.FlushInterval and on Flush, in batches of at most
// Config.MaxBatchSize, and writes each batch with one Sink.Write call.
//
// # Output
//
// The opening bracket is written with the first batch and the closing one
// by Shutdown, so the file is valid JSON once Shutdown returns nil. A crash
// leaves an unterminated array, which the viewer still loads.
//
// # Threads
//
// Goroutines move between OS threads, so the OS thread id is only used when
// passed explicitly as WithThreadSource(OSThreadID). A span entered with no
// thread on its context goes on a lane, a synthetic row from LaneBase up. A
// child joins its parent's lane while the parent is innermost there, and
// every other span takes a free lane. Lanes are reused once empty.
//
// # Nesting
//
// Begin and End records on one thread must nest. An exit whose span is not
// innermost on its thread is handled per Config.MisnestPolicy: an instant
// event marked misnested (the default), the End anyway, or nothing.
//
// # Failure handling
//
// Callbacks never fail. Unknown span ids are counted in Diagnostics. The
// first sink failure is kept in Err and logged; later batches are still
// attempted.
//
// # Usage
//
//	layer, err := chrometrace.NewLayer(chrometrace.Config{OutputPath: "trace.json"})
//	if err != nil {
//	    return err
//	}
//	ctx = chrometrace.WithThreadID(ctx, 1)
//	layer.OnNewSpan(ctx, 1, chrometrace.SpanAttributes{Name: "load", Category: "io"})
//	layer.OnEnter(ctx, 1)
//	layer.OnExit(ctx, 1)
//	layer.OnClose(ctx, 1)
//	err = layer.Shutdown(ctx)
//
// # FX Module Integration
//
//	app := fx.New(
//	    logger.FXModule,
//	    chrometrace.FXModule,
//	    fx.Supply(chrometrace.Config{OutputPath: "trace.json"}),
//	)
package chrometrace
