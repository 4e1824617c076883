package chrometrace

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aalemi-dev/chrometrace/observability"
	"github.com/aalemi-dev/chrometrace/sink"
	"github.com/zoobzio/clockz"
)

// ChromeLayer writes span lifecycle callbacks as a Chrome Trace Event
// Format document.
//
// The producer path (every On* callback) resolves identity, touches one
// registry shard and one thread-stack shard, encodes and pushes to a
// lock-free queue. It never performs I/O, never logs and never waits on the
// flush task.
//
// ChromeLayer implements the Layer interface.
type ChromeLayer struct {
	cfg      Config
	encoder  Encoder
	resolver *Resolver
	registry *Registry
	stacks   *threadStacks
	lanes    *lanes
	queue    *Queue
	sink     *guardedSink

	clock    clockz.Clock
	threads  ThreadSource
	logger   Logger
	observer observability.Observer

	state         atomic.Int32
	flushRequests chan chan struct{}
	stopCh        chan struct{}
	done          chan struct{}
	closeErr      error

	// Owned by the flush task.
	framer   framer
	reported struct {
		lookupMisses int64
		misnested    int64
	}

	errMu    sync.Mutex
	firstErr error

	stats layerStats
}

type layerStats struct {
	eventsEnqueued        atomic.Int64
	eventsWritten         atomic.Int64
	batchesWritten        atomic.Int64
	bytesWritten          atomic.Int64
	lookupMisses          atomic.Int64
	unmatchedExits        atomic.Int64
	misnested             atomic.Int64
	serializationFailures atomic.Int64
	writeFailures         atomic.Int64
	droppedOnWrite        atomic.Int64
	pushedAfterClose      atomic.Int64
}

// Diagnostics is a point-in-time copy of the layer's counters.
type Diagnostics struct {
	EventsEnqueued int64
	EventsWritten  int64
	BatchesWritten int64
	BytesWritten   int64

	// LookupMisses counts enter, exit and close callbacks for unknown ids.
	LookupMisses int64

	// UnmatchedExits counts exits of known spans with no open interval.
	UnmatchedExits int64

	// Misnested counts exits that were not innermost on their thread.
	Misnested int64

	SerializationFailures int64
	WriteFailures         int64

	// DroppedOnWrite counts records lost with a batch the sink rejected.
	DroppedOnWrite int64

	// PushedAfterClose counts records enqueued once the layer was closed.
	// They are never written.
	PushedAfterClose int64

	QueueDepth int
	OpenSpans  int
	State      State
}

// Option configures a ChromeLayer.
type Option func(*ChromeLayer)

// WithSink replaces the sink built from Config.OutputPath.
func WithSink(s Sink) Option {
	return func(l *ChromeLayer) { l.sink = &guardedSink{inner: s} }
}

// WithLogger sets the logger used by the flush task and lifecycle methods.
func WithLogger(logger Logger) Option {
	return func(l *ChromeLayer) { l.logger = logger }
}

// WithObserver sets the observer notified of sink writes and anomalies.
func WithObserver(observer observability.Observer) Option {
	return func(l *ChromeLayer) { l.observer = observer }
}

// WithClock sets the clock used for timestamps and flush intervals.
func WithClock(clock clockz.Clock) Option {
	return func(l *ChromeLayer) { l.clock = clock }
}

// WithThreadSource sets how the calling thread is identified when the
// context carries no thread id. Without one, such callbacks are placed on
// lanes that follow the span tree. Pass OSThreadID only when every traced
// goroutine is locked to its OS thread.
func WithThreadSource(threads ThreadSource) Option {
	return func(l *ChromeLayer) { l.threads = threads }
}

// NewLayer validates cfg, opens the sink and starts the flush task.
//
// Example:
//
//	layer, err := chrometrace.NewLayer(chrometrace.Config{
//	    OutputPath:    "trace.json",
//	    FlushInterval: 500 * time.Millisecond,
//	    ProcessName:   "indexer",
//	})
//	if err != nil {
//	    return err
//	}
//	defer layer.Shutdown(context.Background())
func NewLayer(cfg Config, opts ...Option) (*ChromeLayer, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	l := &ChromeLayer{
		cfg:           cfg,
		registry:      NewRegistry(),
		stacks:        newThreadStacks(),
		lanes:         newLanes(),
		queue:         NewQueue(),
		clock:         clockz.RealClock,
		flushRequests: make(chan chan struct{}),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		framer:        framer{format: cfg.Format},
		encoder: Encoder{
			Misnest:     cfg.MisnestPolicy,
			IncludeArgs: !cfg.OmitArgs,
			Overrides:   cfg.FieldOverrides,
		},
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.sink == nil {
		s, err := sink.Open(sink.Config{Path: cfg.OutputPath, Compress: cfg.Compress})
		if err != nil {
			return nil, fmt.Errorf("failed to open chrome trace output: %w", err)
		}
		l.sink = &guardedSink{inner: s}
	}
	l.resolver = NewResolver(l.clock, cfg.ClockEpoch, l.threads)

	if cfg.ProcessName != "" {
		who := l.resolver.Resolve(context.Background())
		l.emit(TraceEvent{
			Phase:     PhaseMetadata,
			Name:      MetadataProcessName,
			ProcessID: who.ProcessID,
			ThreadID:  who.ThreadID,
			Args:      Args{{Key: "name", Value: String(cfg.ProcessName)}},
		})
	}

	go l.run()

	l.logInfo(context.Background(), "chrome trace layer started", nil, map[string]interface{}{
		"output":         cfg.OutputPath,
		"format":         cfg.Format,
		"flush_interval": cfg.FlushInterval.String(),
		"max_batch_size": cfg.MaxBatchSize,
	})
	return l, nil
}

// OnNewSpan registers a span. Its Begin is written on the first enter.
func (l *ChromeLayer) OnNewSpan(ctx context.Context, id SpanID, attrs SpanAttributes) {
	if id == 0 {
		return
	}
	who := l.resolver.Resolve(ctx)
	l.registry.Create(id, newSpanRecord(attrs, who, l.encoder.Overrides))
}

// OnEnter writes a Begin for id on the calling thread, or an async start
// the first time an async span is entered. An enter whose context carries
// no thread is placed on a lane by placeOnLane.
func (l *ChromeLayer) OnEnter(ctx context.Context, id SpanID) {
	who := l.resolver.Resolve(ctx)
	tid, pushed := who.ThreadID, false
	if !who.Bound {
		tid, pushed = l.placeOnLane(id)
		// A lane may just have been freed by another goroutine; stamp the
		// Begin after that lane's last End.
		who = l.resolver.Resolve(ctx)
	}
	rec, begin, first, ok := l.registry.enter(id, tid)
	if !ok {
		if pushed {
			if _, empty := l.stacks.pop(tid, id); empty {
				l.freeLane(tid)
			}
		}
		l.stats.lookupMisses.Add(1)
		return
	}
	if !rec.Async && !pushed {
		l.stacks.push(begin, id)
	}
	l.emit(l.encoder.Encode(CallbackEnter, id, who, Snapshot{
		Record: rec,
		Found:  true,
		First:  first,
		Thread: begin,
	})...)
}

// OnExit writes the End matching the span's open interval. The End is
// drawn on the thread its Begin was, whichever thread exits.
func (l *ChromeLayer) OnExit(ctx context.Context, id SpanID) {
	who := l.resolver.Resolve(ctx)
	rec, begin, open, ok := l.registry.exit(id, who.ThreadID)
	if !ok {
		l.stats.lookupMisses.Add(1)
		return
	}
	if !open {
		if !rec.Async {
			l.stats.unmatchedExits.Add(1)
		}
		return
	}
	nesting, empty := l.stacks.pop(begin, id)
	if nesting != NestOK {
		l.stats.misnested.Add(1)
	}
	l.emit(l.encoder.Encode(CallbackExit, id, who, Snapshot{
		Record:  rec,
		Found:   true,
		Open:    true,
		Thread:  begin,
		Nesting: nesting,
	})...)
	if empty {
		l.freeLane(begin)
	}
}

// OnClose forgets the span. Intervals still open get their End here, and
// an async span gets its async end.
func (l *ChromeLayer) OnClose(ctx context.Context, id SpanID) {
	who := l.resolver.Resolve(ctx)
	rec, ok := l.registry.Remove(id)
	if !ok {
		l.stats.lookupMisses.Add(1)
		return
	}
	dangling := rec.Active()
	var emptied []ThreadID
	for _, tid := range dangling {
		if _, empty := l.stacks.pop(tid, id); empty {
			emptied = append(emptied, tid)
		}
	}
	l.emit(l.encoder.Encode(CallbackClose, id, who, Snapshot{
		Record:   rec,
		Found:    true,
		Dangling: dangling,
	})...)
	for _, tid := range emptied {
		l.freeLane(tid)
	}
}

// OnEvent writes a thread-scoped instant event. Without a thread on ctx it
// goes to the row of ev.Span's innermost open interval, or to the first
// lane when there is none.
func (l *ChromeLayer) OnEvent(ctx context.Context, ev Event) {
	who := l.resolver.ResolveAt(ctx, ev.Time)
	if !who.Bound {
		who.ThreadID = LaneBase
		if rec, ok := l.registry.Lookup(ev.Span); ok && ev.Span != 0 {
			if active := rec.Active(); len(active) > 0 {
				who.ThreadID = active[len(active)-1]
			}
		}
	}
	l.emit(l.encoder.Encode(CallbackEvent, 0, who, Snapshot{Event: &ev})...)
}

// placeOnLane picks the thread for an enter of id made with no thread on
// its context. A child whose parent is innermost on the parent's row joins
// that row; any other span takes a free lane. pushed reports that id is
// already on the chosen thread's stack.
func (l *ChromeLayer) placeOnLane(id SpanID) (tid ThreadID, pushed bool) {
	rec, ok := l.registry.Lookup(id)
	if !ok || rec.hasTID {
		return 0, false
	}
	if rec.Parent != 0 {
		if parent, ok := l.registry.Lookup(rec.Parent); ok {
			if active := parent.Active(); len(active) > 0 {
				row := active[len(active)-1]
				if rec.Async {
					return row, false
				}
				if l.stacks.pushIfTop(row, rec.Parent, id) {
					return row, true
				}
			}
		}
	}
	if rec.Async {
		return LaneBase, false
	}
	lane, fresh := l.lanes.acquire()
	if fresh {
		l.SetThreadName(lane, fmt.Sprintf("lane %d", l.lanes.number(lane)))
	}
	l.stacks.push(lane, id)
	return lane, true
}

// freeLane returns tid to the lane pool once its stack is empty and its
// last End is enqueued.
func (l *ChromeLayer) freeLane(tid ThreadID) {
	if l.lanes.owns(tid) {
		l.lanes.release(tid)
	}
}

// SetThreadName labels tid's row in the viewer.
func (l *ChromeLayer) SetThreadName(tid ThreadID, name string) {
	l.emit(TraceEvent{
		Phase:     PhaseMetadata,
		Name:      MetadataThreadName,
		ProcessID: l.resolver.ProcessID(),
		ThreadID:  tid,
		Args:      Args{{Key: "name", Value: String(name)}},
	})
}

// Flush asks the flush task to write everything enqueued so far and waits
// until it has. Records from a batch the sink rejected are not retried.
func (l *ChromeLayer) Flush(ctx context.Context) error {
	switch l.State() {
	case StateDraining:
		return ErrShutdownInProgress
	case StateClosed:
		return ErrLayerClosed
	}

	ack := make(chan struct{})
	select {
	case l.flushRequests <- ack:
	case <-l.done:
		// The final drain covered everything enqueued before this call.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Diagnostics returns the layer's counters.
func (l *ChromeLayer) Diagnostics() Diagnostics {
	return Diagnostics{
		EventsEnqueued:        l.stats.eventsEnqueued.Load(),
		EventsWritten:         l.stats.eventsWritten.Load(),
		BatchesWritten:        l.stats.batchesWritten.Load(),
		BytesWritten:          l.stats.bytesWritten.Load(),
		LookupMisses:          l.stats.lookupMisses.Load(),
		UnmatchedExits:        l.stats.unmatchedExits.Load(),
		Misnested:             l.stats.misnested.Load(),
		SerializationFailures: l.stats.serializationFailures.Load(),
		WriteFailures:         l.stats.writeFailures.Load(),
		DroppedOnWrite:        l.stats.droppedOnWrite.Load(),
		PushedAfterClose:      l.stats.pushedAfterClose.Load(),
		QueueDepth:            l.queue.Len(),
		OpenSpans:             l.registry.Len(),
		State:                 l.State(),
	}
}

// Config returns the effective configuration, defaults applied.
func (l *ChromeLayer) Config() Config {
	return l.cfg
}

func (l *ChromeLayer) emit(events ...TraceEvent) {
	if len(events) == 0 {
		return
	}
	if l.State() == StateClosed {
		l.stats.pushedAfterClose.Add(int64(len(events)))
	}
	for _, ev := range events {
		l.queue.Push(ev)
	}
	l.stats.eventsEnqueued.Add(int64(len(events)))
}

// logInfo logs an informational message using the configured logger if available.
func (l *ChromeLayer) logInfo(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if l.logger != nil {
		l.logger.InfoWithContext(ctx, msg, err, fields)
	}
}

// logWarn logs a warning message using the configured logger if available.
func (l *ChromeLayer) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if l.logger != nil {
		l.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

// logError logs an error message using the configured logger if available.
// Only the flush task reports errors this way, since it has no caller to
// return them to.
func (l *ChromeLayer) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if l.logger != nil {
		l.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
