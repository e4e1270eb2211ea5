package vclock_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/vclock"
)

func TestTimerPeriodic(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	n := 0
	tm := vclock.NewTimer(c, func() { n++ })
	tm.SetFrequency(1000) // 1 ms per count
	tm.SetLimit(10, true)
	tm.Run(false)

	c.Advance(4 * time.Millisecond)
	is.Equal(tm.Count(), uint64(6))
	c.Advance(6 * time.Millisecond)
	is.Equal(n, 1)
	is.Equal(tm.Count(), uint64(10))
	c.Advance(25 * time.Millisecond)
	is.Equal(n, 3)
	is.Equal(tm.Expirations(), uint64(3))
}

func TestTimerOneShot(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	n := 0
	tm := vclock.NewTimer(c, func() { n++ })
	tm.SetPeriod(time.Microsecond)
	tm.SetCount(5)
	tm.Run(true)
	c.Advance(time.Millisecond)
	is.Equal(n, 1)
	is.True(!tm.Running())
	is.Equal(tm.Count(), uint64(0))
}

// A stopped timer's queued event still comes due but does nothing.
func TestTimerStopLeavesStaleEvent(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	n := 0
	tm := vclock.NewTimer(c, func() { n++ })
	tm.SetFrequency(1000)
	tm.SetLimit(5, true)
	tm.Run(false)
	c.Advance(2 * time.Millisecond)
	tm.Stop()
	is.Equal(tm.Count(), uint64(3))

	is.Equal(c.Advance(10*time.Millisecond), 1) // the stale event
	is.Equal(n, 0)
	is.Equal(tm.Count(), uint64(3))
}

func TestTimerNewLimitAtReload(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	var at []time.Duration
	tm := vclock.NewTimer(c, func() { at = append(at, c.Now()) })
	tm.SetFrequency(1000)
	tm.SetLimit(5, true)
	tm.Run(false)
	c.Advance(2 * time.Millisecond)
	tm.SetLimit(2, false) // current period still runs to 5
	c.Advance(7 * time.Millisecond)
	is.Equal(at, []time.Duration{5 * time.Millisecond, 7 * time.Millisecond, 9 * time.Millisecond})
}

func TestTimerRearmKeepsOneEvent(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	n := 0
	tm := vclock.NewTimer(c, func() { n++ })
	tm.SetFrequency(1000000)
	tm.SetLimit(1000000, true)
	tm.Run(false)
	for i := 0; i < 10000; i++ {
		tm.SetLimit(1000000, false)
		tm.SetCount(500000)
	}
	is.Equal(c.Pending(), 1)

	tm.Stop()
	is.Equal(c.Pending(), 1) // stale until the next rearm
	tm.Run(false)
	is.Equal(c.Pending(), 1)

	c.Advance(500 * time.Millisecond)
	is.Equal(n, 1)
	is.Equal(c.Pending(), 1)
}
