package chrometrace

import (
	"sync"
	"sync/atomic"
)

type queueNode struct {
	next  atomic.Pointer[queueNode]
	event TraceEvent
}

// Queue is an unbounded multi-producer, single-consumer FIFO.
//
// Producers link nodes with one atomic swap and one atomic store and never
// wait on each other or on the consumer. Push order is drain order for any
// one producer. A push that has swapped the head but not yet linked its
// predecessor is invisible to the consumer for that instant, so an empty
// drain is not proof the queue is empty; see drainUntilQuiet.
type Queue struct {
	head   atomic.Pointer[queueNode]
	length atomic.Int64

	// consumer guards tail; only the flush task drains, the lock makes
	// that rule cheap to keep.
	consumer sync.Mutex
	tail     *queueNode
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	stub := &queueNode{}
	q := &Queue{tail: stub}
	q.head.Store(stub)
	return q
}

// Push enqueues ev. It never blocks and never fails short of the runtime
// failing to allocate.
func (q *Queue) Push(ev TraceEvent) {
	n := &queueNode{event: ev}
	q.length.Add(1)
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// DrainBatch removes up to max records in FIFO order. A max of zero or less
// drains everything currently linked.
func (q *Queue) DrainBatch(max int) []TraceEvent {
	q.consumer.Lock()
	defer q.consumer.Unlock()

	var out []TraceEvent
	if max > 0 {
		hint := int(q.length.Load())
		if hint > max {
			hint = max
		}
		if hint > 0 {
			out = make([]TraceEvent, 0, hint)
		}
	}
	for max <= 0 || len(out) < max {
		next := q.tail.next.Load()
		if next == nil {
			break
		}
		out = append(out, next.event)
		// next becomes the new stub; drop its payload so drained args can
		// be collected.
		next.event = TraceEvent{}
		q.tail = next
		q.length.Add(-1)
	}
	return out
}

// Len reports the number of records pushed and not yet drained. It may
// briefly count a record whose push is still in flight.
func (q *Queue) Len() int {
	return int(q.length.Load())
}
