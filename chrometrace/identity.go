package chrometrace

import (
	"context"
	"os"
	"time"

	"github.com/zoobzio/clockz"
)

// ThreadID identifies the row an event is drawn on in the viewer.
type ThreadID int64

// ThreadSource reports the thread identifier of the calling goroutine. The
// value must stay fixed for the goroutine's lifetime; OSThreadID only
// satisfies that for goroutines locked with runtime.LockOSThread.
type ThreadSource func() ThreadID

// Identity is the resolved who-and-when of one callback.
type Identity struct {
	Timestamp int64 // microseconds from the epoch
	ThreadID  ThreadID
	ProcessID int64

	// Bound is set when ThreadID came from the context or a ThreadSource.
	// Otherwise ThreadID is zero and the layer places the span on a lane.
	Bound bool
}

// OSThreadID returns the kernel thread id of the caller on Linux and the
// process id elsewhere.
func OSThreadID() ThreadID { return osThreadID() }

type threadKeyType struct{}

var threadKey threadKeyType

// WithThreadID returns a context that pins every callback made with it to
// tid. Spans entered without one are drawn on lanes the layer assigns
// itself, so a pinned id is only needed to name a row after a worker.
func WithThreadID(ctx context.Context, tid ThreadID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, threadKey, tid)
}

// ThreadIDFromContext returns the thread pinned by WithThreadID.
func ThreadIDFromContext(ctx context.Context) (ThreadID, bool) {
	if ctx == nil {
		return 0, false
	}
	tid, ok := ctx.Value(threadKey).(ThreadID)
	return tid, ok
}

// Resolver maps the current point of execution to a timestamp, a thread and
// the process. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	clock   clockz.Clock
	start   time.Time
	base    int64
	pid     int64
	threads ThreadSource
}

// NewResolver fixes the epoch at the current instant of clock. With
// EpochUnix, timestamps are offset so they read as microseconds since the
// Unix epoch; they still advance on the monotonic clock. threads may be nil,
// in which case only contexts carrying WithThreadID resolve to a thread.
func NewResolver(clock clockz.Clock, epoch string, threads ThreadSource) *Resolver {
	if clock == nil {
		clock = clockz.RealClock
	}
	r := &Resolver{
		clock:   clock,
		start:   clock.Now(),
		pid:     int64(os.Getpid()),
		threads: threads,
	}
	if epoch == EpochUnix {
		r.base = r.start.UnixMicro()
	}
	return r
}

// Resolve returns the identity of a callback made now with ctx.
func (r *Resolver) Resolve(ctx context.Context) Identity {
	tid, bound := r.thread(ctx)
	return Identity{
		Timestamp: r.base + r.clock.Since(r.start).Microseconds(),
		ThreadID:  tid,
		ProcessID: r.pid,
		Bound:     bound,
	}
}

// ResolveAt is Resolve with an explicit event time. Times before the epoch
// are clamped to it.
func (r *Resolver) ResolveAt(ctx context.Context, at time.Time) Identity {
	id := r.Resolve(ctx)
	if at.IsZero() {
		return id
	}
	d := at.Sub(r.start)
	if d < 0 {
		d = 0
	}
	id.Timestamp = r.base + d.Microseconds()
	return id
}

// ProcessID returns the process identifier stamped on every event.
func (r *Resolver) ProcessID() int64 { return r.pid }

func (r *Resolver) thread(ctx context.Context) (ThreadID, bool) {
	if tid, ok := ThreadIDFromContext(ctx); ok {
		return tid, true
	}
	if r.threads != nil {
		return r.threads(), true
	}
	return 0, false
}
