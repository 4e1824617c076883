package chrometrace

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// SpanID is the opaque handle the host framework assigns to a span. It is
// unique among open spans and may be reused once the span closes. Zero means
// "no span" and is never assigned by a host.
type SpanID uint64

// SpanRecord is the registry's view of one open span.
type SpanRecord struct {
	Name     string
	Category string
	Start    int64 // microseconds, at creation
	ThreadID ThreadID
	Parent   SpanID
	Async    bool
	Args     Args

	// ID, ProcessID, PinnedThread, Duration and ThreadTimestamp come from
	// field overrides. Duration and ThreadTimestamp go on the opening record.
	ID              string
	ProcessID       int64
	PinnedThread    ThreadID
	Duration        int64
	ThreadTimestamp int64
	hasPID          bool
	hasTID          bool

	// active lists, in begin order, the threads of intervals entered and
	// not yet exited.
	active  []ThreadID
	started bool

	// asyncThread is the row of an async span's b record.
	asyncThread ThreadID
}

// Active returns the threads of intervals currently open for the span.
func (r SpanRecord) Active() []ThreadID { return r.active }

const registryShards = 64

// shardOf spreads keys over shards. Host ids are often sequential, which
// would otherwise crowd neighbouring spans onto one lock.
func shardOf(key uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return xxhash.Sum64(b[:]) & (registryShards - 1)
}

type registryShard struct {
	mu    sync.Mutex
	spans map[SpanID]*SpanRecord
}

// Registry is the process-wide table of open spans. It is split into
// independently locked shards so concurrent callbacks only contend when
// their span ids hash together; every critical section is a map operation.
type Registry struct {
	shards [registryShards]registryShard
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].spans = make(map[SpanID]*SpanRecord)
	}
	return r
}

func (r *Registry) shard(id SpanID) *registryShard {
	return &r.shards[shardOf(uint64(id))]
}

// Create registers a span. A record left under the same id is replaced.
func (r *Registry) Create(id SpanID, rec SpanRecord) {
	rec.active = nil
	rec.started = false
	s := r.shard(id)
	s.mu.Lock()
	s.spans[id] = &rec
	s.mu.Unlock()
}

// Lookup returns a copy of the span's record.
func (r *Registry) Lookup(id SpanID) (SpanRecord, bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.spans[id]
	if !ok {
		return SpanRecord{}, false
	}
	return rec.snapshot(), true
}

// Remove deletes the span and returns its final record.
func (r *Registry) Remove(id SpanID) (SpanRecord, bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.spans[id]
	if !ok {
		return SpanRecord{}, false
	}
	delete(s.spans, id)
	return *rec, true
}

// Len counts open spans. It locks each shard in turn and is meant for
// diagnostics, not the hot path.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.spans)
		s.mu.Unlock()
	}
	return n
}

// enter opens an interval of id on tid. For async spans it only records
// whether this was the first activation. The returned thread is the one the
// interval is drawn on, which a tid override may pin.
func (r *Registry) enter(id SpanID, tid ThreadID) (rec SpanRecord, begin ThreadID, first bool, ok bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.spans[id]
	if !ok {
		return SpanRecord{}, 0, false, false
	}
	if p.hasTID {
		tid = p.PinnedThread
	}
	first = !p.started
	p.started = true
	if first && p.Async {
		p.asyncThread = tid
	}
	if !p.Async {
		p.active = append(p.active, tid)
	}
	return p.snapshot(), tid, first, true
}

// exit closes the interval of id that is open on tid, or the most recent
// one when the span migrated threads since it was entered. open is false
// when the span has no open interval.
func (r *Registry) exit(id SpanID, tid ThreadID) (rec SpanRecord, begin ThreadID, open bool, ok bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.spans[id]
	if !ok {
		return SpanRecord{}, 0, false, false
	}
	if p.hasTID {
		tid = p.PinnedThread
	}
	if p.Async || len(p.active) == 0 {
		return p.snapshot(), 0, false, true
	}
	idx := len(p.active) - 1
	for i := idx; i >= 0; i-- {
		if p.active[i] == tid {
			idx = i
			break
		}
	}
	begin = p.active[idx]
	p.active = append(p.active[:idx], p.active[idx+1:]...)
	return p.snapshot(), begin, true, true
}

func (r *SpanRecord) snapshot() SpanRecord {
	out := *r
	if len(r.active) > 0 {
		out.active = append([]ThreadID(nil), r.active...)
	}
	return out
}

// Nesting is the verdict on whether an exit respects the stack discipline
// of its thread.
type Nesting uint8

const (
	// NestOK means the exiting span was the innermost open span.
	NestOK Nesting = iota
	// NestMisnested means an inner span on the same thread is still open.
	NestMisnested
	// NestMissing means the span was not on the thread's stack at all.
	NestMissing
)

type stackShard struct {
	mu     sync.Mutex
	stacks map[ThreadID][]SpanID
}

// threadStacks tracks, per thread, the spans whose Begin has been emitted
// and whose End has not.
type threadStacks struct {
	shards [registryShards]stackShard
}

func newThreadStacks() *threadStacks {
	t := &threadStacks{}
	for i := range t.shards {
		t.shards[i].stacks = make(map[ThreadID][]SpanID)
	}
	return t
}

func (t *threadStacks) shard(tid ThreadID) *stackShard {
	return &t.shards[shardOf(uint64(tid))]
}

func (t *threadStacks) push(tid ThreadID, id SpanID) {
	s := t.shard(tid)
	s.mu.Lock()
	s.stacks[tid] = append(s.stacks[tid], id)
	s.mu.Unlock()
}

// pushIfTop pushes id onto tid's stack only when want is innermost there.
// The check and the push happen under one lock so two children of the same
// parent cannot both claim its thread.
func (t *threadStacks) pushIfTop(tid ThreadID, want, id SpanID) bool {
	s := t.shard(tid)
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.stacks[tid]
	if len(stack) == 0 || stack[len(stack)-1] != want {
		return false
	}
	s.stacks[tid] = append(stack, id)
	return true
}

// pop removes the innermost occurrence of id from tid's stack and reports
// whether it was on top. empty is set when the pop left the stack empty.
func (t *threadStacks) pop(tid ThreadID, id SpanID) (verdict Nesting, empty bool) {
	s := t.shard(tid)
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.stacks[tid]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] != id {
			continue
		}
		verdict = NestOK
		if i != len(stack)-1 {
			verdict = NestMisnested
		}
		stack = append(stack[:i], stack[i+1:]...)
		if len(stack) == 0 {
			delete(s.stacks, tid)
			return verdict, true
		}
		s.stacks[tid] = stack
		return verdict, false
	}
	return NestMissing, false
}

func (t *threadStacks) depth(tid ThreadID) int {
	s := t.shard(tid)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stacks[tid])
}
