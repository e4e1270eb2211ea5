// Package vclock is the virtual time base peripherals schedule work on.
// Time only moves when the owner calls Advance.
package vclock

import (
	"container/heap"
	"time"
)

// Event is a callback queued on a Clock.
type Event struct {
	at    time.Duration
	seq   uint64
	fn    func()
	index int // heap index, -1 once dispatched or cancelled
}

// At is the virtual time the event is due.
func (e *Event) At() time.Duration { return e.at }

// Queued reports whether the event is still waiting to fire.
func (e *Event) Queued() bool { return e != nil && e.index >= 0 }

type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *eventQueue) Push(x any) {
	e := x.(*Event)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Clock is a monotonic virtual clock. Events due at the same instant fire in
// the order they were scheduled. A Clock is not safe for concurrent use.
type Clock struct {
	now   time.Duration
	seq   uint64
	queue eventQueue
	fired uint64
}

func New() *Clock { return &Clock{} }

// Now returns the current virtual time since creation.
func (c *Clock) Now() time.Duration { return c.now }

// At schedules fn to run when the clock reaches t. A time in the past fires
// on the next Advance.
func (c *Clock) At(t time.Duration, fn func()) *Event {
	if t < c.now {
		t = c.now
	}
	c.seq++
	e := &Event{at: t, seq: c.seq, fn: fn}
	heap.Push(&c.queue, e)
	return e
}

// After schedules fn to run d from now.
func (c *Clock) After(d time.Duration, fn func()) *Event {
	return c.At(c.now+d, fn)
}

// Cancel removes e from the queue. Cancelling a fired event is a no-op.
func (c *Clock) Cancel(e *Event) {
	if e == nil || e.index < 0 || e.index >= len(c.queue) || c.queue[e.index] != e {
		return
	}
	heap.Remove(&c.queue, e.index)
}

// Pending is the number of queued events.
func (c *Clock) Pending() int { return len(c.queue) }

// Fired is the number of events dispatched since creation.
func (c *Clock) Fired() uint64 { return c.fired }

// Next returns the due time of the earliest queued event.
func (c *Clock) Next() (time.Duration, bool) {
	if len(c.queue) == 0 {
		return 0, false
	}
	return c.queue[0].at, true
}

// Advance moves time forward by d, running every event that falls due on the
// way in order. It returns the number of events dispatched.
func (c *Clock) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	return c.RunUntil(c.now + d)
}

// RunUntil moves time forward to t. Events scheduled by callbacks for a time
// not after t run in the same call.
func (c *Clock) RunUntil(t time.Duration) int {
	n := 0
	for len(c.queue) > 0 && c.queue[0].at <= t {
		e := heap.Pop(&c.queue).(*Event)
		c.now = e.at
		c.fired++
		n++
		e.fn()
	}
	if t > c.now {
		c.now = t
	}
	return n
}
