package intc_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/intc"
)

// MockOutputLine records every level driven into it.
type MockOutputLine struct {
	mu     sync.Mutex
	Levels []bool
}

func (m *MockOutputLine) SetLevel(level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Levels = append(m.Levels, level)
}

func (m *MockOutputLine) Level() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Levels) > 0 && m.Levels[len(m.Levels)-1]
}

func (m *MockOutputLine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Levels)
}

func newController(t *testing.T, cfg intc.Config, priorities ...uint8) (*intc.Controller, *MockOutputLine) {
	t.Helper()
	if cfg.Lines == 0 {
		cfg.Lines = len(priorities)
	}
	if cfg.Domains == 0 {
		cfg.Domains = 1
	}
	if cfg.StackDepth == 0 {
		cfg.StackDepth = 8
	}
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	c, err := intc.NewController(cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	out := &MockOutputLine{}
	if err := c.Connect(intc.DomainIRQ, out); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for id, p := range priorities {
		c.SetPriority(id, p)
	}
	return c, out
}

func TestNewControllerRejectsBadConfig(t *testing.T) {
	for _, cfg := range []intc.Config{
		{Name: "no lines", Domains: 1, StackDepth: 1},
		{Name: "no domains", Lines: 4, StackDepth: 1},
		{Name: "three domains", Lines: 4, Domains: 3, StackDepth: 1},
		{Name: "no stack", Lines: 4, Domains: 1},
	} {
		t.Run(cfg.Name, func(t *testing.T) {
			is := is.New(t)
			_, err := intc.NewController(cfg)
			is.True(errors.Is(err, intc.ErrConfig))
		})
	}
}

func TestControllerPowerOn(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{Lines: 8})
	for _, l := range c.Lines() {
		is.True(!l.Enabled && !l.Pending && !l.Active)
		is.Equal(l.Priority, uint8(0))
	}
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
	is.True(!out.Level())
}

func TestScenarioA(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{}, 3, 3, 5, 1, 0, 0, 0, 0)
	for id := 0; id < 3; id++ {
		c.SetEnabled(id, true)
		c.SetLevel(id, true)
	}
	id, ok := c.PendingAck(intc.DomainIRQ)
	is.True(ok)
	is.Equal(id, 2)
	is.True(out.Level())
	is.Equal(c.State(intc.DomainIRQ), intc.StateSignaled)

	v, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(ok)
	is.Equal(v, uint32(2))
	snap := c.Snapshot().Domains[0]
	is.Equal(snap.CurrentPriority, uint8(5))
	is.Equal(snap.PriorityStack, []uint8{0})
	is.True(c.Line(2).Active)

	c.SetLevel(0, true) // priority 3 does not beat 5
	is.True(!out.Level())
	is.Equal(c.State(intc.DomainIRQ), intc.StateInService)

	c.EndOfInterrupt(intc.DomainIRQ)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
	is.True(!c.Line(2).Active)
	id, ok = c.PendingAck(intc.DomainIRQ)
	is.True(ok)
	is.Equal(id, 0) // 0 and 1 tie at 3
	is.True(out.Level())
}

func TestScenarioB(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{}, 3, 3, 5, 1, 0, 0, 0, 0)
	c.SetEnabled(2, true)
	c.SetLevel(2, true)
	_, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(ok)

	c.SetEnabled(2, false)
	is.True(c.Line(2).Active)
	c.EndOfInterrupt(intc.DomainIRQ)
	is.True(!c.Line(2).Active)
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
}

func TestSetLevelMarksPendingWhileDisabled(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{}, 1, 1)
	c.SetLevel(1, true)
	is.True(c.Line(1).Pending)
	is.True(!out.Level())

	c.SetEnabled(1, true)
	is.True(out.Level())

	c.SetLevel(1, false)
	is.True(!c.Line(1).Pending)
	is.True(!out.Level())
}

func TestAckLockoutHoldsCandidate(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{AckLockout: true}, 3, 0, 5)
	c.SetEnabled(0, true)
	c.SetEnabled(2, true)

	c.SetLevel(0, true)
	calls := out.Calls()
	c.SetLevel(2, true) // better, but line 0 is already signalled
	id, _ := c.PendingAck(intc.DomainIRQ)
	is.Equal(id, 0)
	is.Equal(out.Calls(), calls) // not raised a second time
	is.True(out.Level())

	v, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(ok)
	is.Equal(v, uint32(0))
	// Line 2 preempts the handler that was just entered.
	id, _ = c.PendingAck(intc.DomainIRQ)
	is.Equal(id, 2)
	is.True(out.Level())
}

func TestAckLockoutWithdrawnCandidateIsSpurious(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{AckLockout: true, SpuriousVector: 0xFF}, 3, 0)
	c.SetEnabled(0, true)
	c.SetLevel(0, true)
	is.True(out.Level())

	c.SetEnabled(0, false)
	is.True(out.Level()) // held until acknowledged

	v, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(!ok)
	is.Equal(v, uint32(0xFF))
	is.True(!out.Level())
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
}

func TestSpuriousAcknowledge(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{SpuriousVector: 0x3FF}, 1, 2)
	v, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(!ok)
	is.Equal(v, uint32(0x3FF))
	is.Equal(c.Depth(intc.DomainIRQ), 0)
}

func TestNestedPreemption(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{}, 0, 2, 0, 6)
	c.SetEnabled(1, true)
	c.SetEnabled(3, true)

	c.SetLevel(1, true)
	_, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(ok)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(2))

	c.SetLevel(3, true)
	is.True(out.Level())
	v, _ := c.Acknowledge(intc.DomainIRQ)
	is.Equal(v, uint32(3))
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(6))
	is.Equal(c.Depth(intc.DomainIRQ), 2)

	c.EndOfInterrupt(intc.DomainIRQ)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(2))
	is.True(!c.Line(3).Active)
	is.True(c.Line(1).Active)

	c.EndOfInterrupt(intc.DomainIRQ)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
}

func TestNestingRoundTripAtFullDepth(t *testing.T) {
	is := is.New(t)
	const depth = 16
	priorities := make([]uint8, depth)
	for i := range priorities {
		priorities[i] = uint8(i + 1)
	}
	c, _ := newController(t, intc.Config{StackDepth: depth}, priorities...)
	c.SetCurrentPriority(intc.DomainIRQ, 0)

	for id := 0; id < depth; id++ {
		c.SetEnabled(id, true)
		c.SetLevel(id, true)
		v, ok := c.Acknowledge(intc.DomainIRQ)
		is.True(ok)
		is.Equal(v, uint32(id))
		is.Equal(c.CurrentPriority(intc.DomainIRQ), priorities[id])
		is.Equal(c.Depth(intc.DomainIRQ), id+1)
	}
	for id := depth - 1; id >= 0; id-- {
		c.SetLevel(id, false)
		c.EndOfInterrupt(intc.DomainIRQ)
		is.True(!c.Line(id).Active)
		is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(id)) // the priority saved on entry
	}
	is.Equal(c.Depth(intc.DomainIRQ), 0)
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
}

func TestLevelLineRepends(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{}, 4)
	c.SetTrigger(0, intc.TriggerLevel)
	c.SetEnabled(0, true)
	c.SetLevel(0, true)

	c.Acknowledge(intc.DomainIRQ)
	is.True(c.Line(0).Pending) // input still high
	is.True(!out.Level())      // but not above its own priority

	c.EndOfInterrupt(intc.DomainIRQ)
	is.True(out.Level())

	c.SetLevel(0, false)
	is.True(!out.Level())
}

func TestEdgeLineClearsOnAcknowledge(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{}, 4)
	c.SetEnabled(0, true)
	c.SetLevel(0, true)
	c.Acknowledge(intc.DomainIRQ)
	is.True(!c.Line(0).Pending)
	c.EndOfInterrupt(intc.DomainIRQ)
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
}

func TestAutoEOI(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{AutoEOI: true}, 1, 1)
	c.SetEnabled(0, true)
	c.SetEnabled(1, true)
	c.SetLevel(0, true)
	c.SetLevel(1, true)

	v, ok := c.Acknowledge(intc.DomainIRQ)
	is.True(ok)
	is.Equal(v, uint32(0))
	is.True(!c.Line(0).Active)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
	id, _ := c.PendingAck(intc.DomainIRQ)
	is.Equal(id, 1)
	is.True(out.Level())
}

func TestEndOfInterruptAfterEviction(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{StackDepth: 1}, 0, 2, 0, 6)
	c.SetEnabled(1, true)
	c.SetEnabled(3, true)
	c.SetLevel(1, true)
	c.Acknowledge(intc.DomainIRQ)
	c.SetLevel(3, true)
	c.Acknowledge(intc.DomainIRQ)

	c.EndOfInterrupt(intc.DomainIRQ)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(2))
	c.EndOfInterrupt(intc.DomainIRQ) // record of line 1 was evicted
	is.True(!c.Line(1).Active)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
}

func TestEndOfInterruptWithNothingInService(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{Baseline: 0}, 1)
	c.SetCurrentPriority(intc.DomainIRQ, 7)
	c.EndOfInterrupt(intc.DomainIRQ)
	is.Equal(c.CurrentPriority(intc.DomainIRQ), uint8(0))
	is.Equal(c.State(intc.DomainIRQ), intc.StateIdle)
}

func TestSetCurrentPriorityMasks(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{}, 5)
	c.SetCurrentPriority(intc.DomainIRQ, 15)
	c.SetEnabled(0, true)
	c.SetLevel(0, true)
	is.True(!out.Level())
	c.SetCurrentPriority(intc.DomainIRQ, 4)
	is.True(out.Level())
}

func TestOutputDrivenOnChange(t *testing.T) {
	is := is.New(t)
	c, out := newController(t, intc.Config{}, 2, 1)
	calls := out.Calls() // Connect drives the initial level
	c.SetEnabled(0, true)
	c.SetEnabled(1, true)
	c.SetLevel(0, true)
	c.SetLevel(1, true)
	is.Equal(out.Calls(), calls+1)
}

func TestTwoDomainsAreIndependent(t *testing.T) {
	is := is.New(t)
	c, irq := newController(t, intc.Config{Domains: 2, Lines: 4}, 1, 1, 1, 1)
	fiq := &MockOutputLine{}
	is.NoErr(c.Connect(intc.DomainFIQ, fiq))
	c.SetDomain(0, intc.DomainFIQ)
	for id := 0; id < 4; id++ {
		c.SetEnabled(id, true)
	}
	c.SetLevel(0, true)
	c.SetLevel(2, true)
	is.True(irq.Level())
	is.True(fiq.Level())

	v, _ := c.Acknowledge(intc.DomainFIQ)
	is.Equal(v, uint32(0))
	is.True(irq.Level())
	id, _ := c.PendingAck(intc.DomainIRQ)
	is.Equal(id, 2)
}

func TestConnectMissingDomain(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{}, 1)
	err := c.Connect(intc.DomainFIQ, &MockOutputLine{})
	is.True(errors.Is(err, intc.ErrConfig))
}

func TestSetLevelOutOfRangePanics(t *testing.T) {
	c, _ := newController(t, intc.Config{}, 1, 1)
	defer func() {
		if recover() == nil {
			t.Error("SetLevel(2) on a 2-line controller did not panic")
		}
	}()
	c.SetLevel(2, true)
}

func TestSnapshotRestore(t *testing.T) {
	is := is.New(t)
	c, _ := newController(t, intc.Config{AckLockout: true}, 0, 2, 0, 6)
	c.SetEnabled(1, true)
	c.SetEnabled(3, true)
	c.SetLevel(1, true)
	c.Acknowledge(intc.DomainIRQ)
	c.SetLevel(3, true)
	snap := c.Snapshot()

	d, out := newController(t, intc.Config{AckLockout: true}, 0, 0, 0, 0)
	is.NoErr(d.Restore(snap))
	is.Equal(d.Snapshot(), snap)
	is.True(out.Level())
	v, ok := d.Acknowledge(intc.DomainIRQ)
	is.True(ok)
	is.Equal(v, uint32(3))

	small, _ := newController(t, intc.Config{}, 0, 0)
	is.True(errors.Is(small.Restore(snap), intc.ErrConfig))
}
