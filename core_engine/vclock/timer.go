package vclock

import "time"

// Timer is a down-counter clocked at a fixed frequency. When the count
// reaches zero the expire callback runs and, in periodic mode, the count
// reloads from the limit.
//
// Stopping a timer does not pull its queued event; the event still fires but
// is recognised as stale and does nothing.
type Timer struct {
	clock  *Clock
	expire func()

	period  time.Duration // one count
	limit   uint64
	count   uint64        // valid while stopped, or at loadedAt while running
	loaded  time.Duration // when count was sampled
	running bool
	oneShot bool
	gen     uint64
	event   *Event

	expirations uint64
}

// NewTimer creates a stopped timer. expire may be nil.
func NewTimer(c *Clock, expire func()) *Timer {
	return &Timer{clock: c, expire: expire}
}

// SetFrequency sets the count rate in Hz.
func (t *Timer) SetFrequency(hz uint64) {
	if hz == 0 {
		t.SetPeriod(0)
		return
	}
	t.SetPeriod(time.Second / time.Duration(hz))
}

// SetPeriod sets the duration of one count.
func (t *Timer) SetPeriod(p time.Duration) {
	t.sample()
	t.period = p
	t.rearm()
}

func (t *Timer) Period() time.Duration { return t.period }

// SetLimit sets the reload value. With reload true the count is reloaded
// immediately as well.
func (t *Timer) SetLimit(limit uint64, reload bool) {
	t.sample()
	t.limit = limit
	if reload {
		t.count = limit
	}
	t.rearm()
}

func (t *Timer) Limit() uint64 { return t.limit }

// SetCount loads a new count without touching the limit.
func (t *Timer) SetCount(v uint64) {
	t.sample()
	t.count = v
	t.rearm()
}

// Count returns the current counter value.
func (t *Timer) Count() uint64 {
	if !t.running || t.period <= 0 {
		return t.count
	}
	elapsed := uint64((t.clock.Now() - t.loaded) / t.period)
	if elapsed >= t.count {
		return 0
	}
	return t.count - elapsed
}

// Running reports whether the timer is counting.
func (t *Timer) Running() bool { return t.running }

// Expirations counts how many times the timer reached zero.
func (t *Timer) Expirations() uint64 { return t.expirations }

// Run starts counting. A one-shot timer stops after its first expiry.
func (t *Timer) Run(oneShot bool) {
	if t.running && t.oneShot == oneShot {
		return
	}
	t.sample()
	t.oneShot = oneShot
	t.running = true
	t.rearm()
}

// Stop freezes the count. Any queued expiry stays queued but is stale; the
// next rearm removes it.
func (t *Timer) Stop() {
	if !t.running {
		return
	}
	t.sample()
	t.running = false
	t.gen++
}

func (t *Timer) sample() {
	if t.running {
		t.count = t.Count()
		t.loaded = t.clock.Now()
	}
}

func (t *Timer) rearm() {
	if !t.running {
		return
	}
	t.gen++
	t.clock.Cancel(t.event)
	t.event = nil
	if t.period <= 0 {
		return
	}
	if t.count == 0 {
		if t.oneShot || t.limit == 0 {
			return
		}
		t.count = t.limit
	}
	t.loaded = t.clock.Now()
	gen := t.gen
	t.event = t.clock.At(t.loaded+time.Duration(t.count)*t.period, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	if gen != t.gen || !t.running {
		return
	}
	t.expirations++
	t.event = nil
	if t.oneShot || t.limit == 0 {
		t.running = false
		t.count = 0
		t.gen++
	} else {
		t.count = t.limit
		t.rearm()
	}
	if t.expire != nil {
		t.expire()
	}
}
