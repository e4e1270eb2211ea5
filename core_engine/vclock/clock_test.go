package vclock_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/vclock"
)

func TestClockRunsEventsInOrder(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	var got []string
	c.After(3*time.Millisecond, func() { got = append(got, "c") })
	c.After(time.Millisecond, func() { got = append(got, "a") })
	c.After(time.Millisecond, func() { got = append(got, "b") }) // same time, queued later

	is.Equal(c.Pending(), 3)
	next, ok := c.Next()
	is.True(ok)
	is.Equal(next, time.Millisecond)

	is.Equal(c.Advance(2*time.Millisecond), 2)
	is.Equal(got, []string{"a", "b"})
	is.Equal(c.Now(), 2*time.Millisecond)

	is.Equal(c.Advance(time.Millisecond), 1)
	is.Equal(got, []string{"a", "b", "c"})
}

func TestClockCancel(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	fired := false
	e := c.After(time.Millisecond, func() { fired = true })
	is.True(e.Queued())
	c.Cancel(e)
	is.True(!e.Queued())
	c.Advance(time.Second)
	is.True(!fired)
	c.Cancel(e) // no-op
}

func TestClockCallbackSchedulesWithinAdvance(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	n := 0
	var tick func()
	tick = func() {
		n++
		c.After(time.Millisecond, tick)
	}
	c.After(time.Millisecond, tick)
	is.Equal(c.Advance(10*time.Millisecond), 10)
	is.Equal(n, 10)
	is.Equal(c.Fired(), uint64(10))
}

func TestClockPastEventFiresNow(t *testing.T) {
	is := is.New(t)
	c := vclock.New()
	c.Advance(time.Second)
	fired := false
	e := c.At(0, func() { fired = true })
	is.Equal(e.At(), time.Second)
	c.Advance(0)
	is.True(fired)
}
