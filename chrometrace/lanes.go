package chrometrace

import (
	"sync/atomic"
)

// LaneBase is the first thread id handed to a lane. Pinned ids below it
// never collide with lanes.
const LaneBase ThreadID = 1 << 40

const laneFreeListSize = 4096

// lanes hands out synthetic thread ids for spans entered without a bound
// thread. A goroutine can resume on a different OS thread after any yield,
// so the OS thread id says nothing about which spans nest. A lane instead
// follows the span tree: a child entered while its parent is innermost on
// the parent's lane shares it, and anything else gets a lane of its own.
// A lane returns to the free list once its stack empties.
type lanes struct {
	next atomic.Int64
	free chan ThreadID
}

func newLanes() *lanes {
	return &lanes{free: make(chan ThreadID, laneFreeListSize)}
}

// acquire returns a free lane. fresh is set when the lane was never used
// before and has no row name yet.
func (l *lanes) acquire() (lane ThreadID, fresh bool) {
	select {
	case lane = <-l.free:
		return lane, false
	default:
	}
	return LaneBase + ThreadID(l.next.Add(1)-1), true
}

// release puts lane back for reuse. When the free list is full the lane is
// simply forgotten.
func (l *lanes) release(lane ThreadID) {
	select {
	case l.free <- lane:
	default:
	}
}

// owns reports whether tid was handed out by acquire.
func (l *lanes) owns(tid ThreadID) bool {
	return tid >= LaneBase && tid < LaneBase+ThreadID(l.next.Load())
}

// number is the lane's ordinal, starting at zero.
func (l *lanes) number(tid ThreadID) int64 {
	return int64(tid - LaneBase)
}
