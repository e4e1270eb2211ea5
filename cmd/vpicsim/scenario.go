package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"example.com/mcu-vpic/core_engine/intc"
	"example.com/mcu-vpic/core_engine/vclock"
)

type scenario func(w io.Writer) error

var scenarios = map[string]scenario{
	"A": scenarioNesting,
	"B": scenarioDisableInService,
	"C": scenarioStoppedTimer,
}

func scenarioNames() []string {
	var out []string
	for name := range scenarios {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func runScenario(name string, w io.Writer) error {
	fn, ok := scenarios[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("unknown scenario %q (have %s)", name, strings.Join(scenarioNames(), ", "))
	}
	fmt.Fprintf(w, "== scenario %s\n", strings.ToUpper(name))
	if err := fn(w); err != nil {
		return fmt.Errorf("scenario %s: %w", strings.ToUpper(name), err)
	}
	fmt.Fprintf(w, "== scenario %s ok\n", strings.ToUpper(name))
	return nil
}

type traceLine struct {
	w     io.Writer
	level bool
}

func (t *traceLine) SetLevel(level bool) {
	t.level = level
	fmt.Fprintf(t.w, "   cpu irq=%t\n", level)
}

func newScenarioController(w io.Writer, priorities []uint8) (*intc.Controller, *traceLine, error) {
	c, err := intc.NewController(intc.Config{
		Name:           "scenario",
		Lines:          len(priorities),
		Domains:        1,
		StackDepth:     8,
		SpuriousVector: 0xFF,
	})
	if err != nil {
		return nil, nil, err
	}
	out := &traceLine{w: w}
	if err := c.Connect(intc.DomainIRQ, out); err != nil {
		return nil, nil, err
	}
	for id, p := range priorities {
		c.SetPriority(id, p)
	}
	return c, out, nil
}

func check(w io.Writer, ok bool, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if !ok {
		fmt.Fprintf(w, "   FAIL %s\n", msg)
		return fmt.Errorf("%s", msg)
	}
	fmt.Fprintf(w, "   ok   %s\n", msg)
	return nil
}

// scenarioNesting resolves by priority, blocks an equal-or-lower request
// while a handler runs and breaks the tie by line number afterwards.
func scenarioNesting(w io.Writer) error {
	c, out, err := newScenarioController(w, []uint8{3, 3, 5, 1, 0, 0, 0, 0})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "-- lines 0,1,2 enabled and pending")
	for id := 0; id < 3; id++ {
		c.SetEnabled(id, true)
		c.SetLevel(id, true)
	}
	id, _ := c.PendingAck(intc.DomainIRQ)
	if err := check(w, id == 2 && out.level, "line 2 signalled (got %d)", id); err != nil {
		return err
	}
	v, ok := c.Acknowledge(intc.DomainIRQ)
	snap := c.Snapshot().Domains[0]
	if err := check(w, ok && v == 2 && snap.CurrentPriority == 5 && fmt.Sprint(snap.PriorityStack) == "[0]",
		"acknowledge vector %d, current priority %d, stack %v", v, snap.CurrentPriority, snap.PriorityStack); err != nil {
		return err
	}
	fmt.Fprintln(w, "-- line 0 asserted again at priority 3")
	c.SetLevel(0, true)
	if err := check(w, !out.level && c.State(intc.DomainIRQ) == intc.StateInService, "no new signal below priority 5"); err != nil {
		return err
	}
	fmt.Fprintln(w, "-- end of interrupt")
	c.EndOfInterrupt(intc.DomainIRQ)
	id, _ = c.PendingAck(intc.DomainIRQ)
	return check(w, c.CurrentPriority(intc.DomainIRQ) == 0 && id == 0 && out.level,
		"current priority %d, line %d signalled on the 0/1 tie", c.CurrentPriority(intc.DomainIRQ), id)
}

// scenarioDisableInService completes a line that was disabled mid-service.
func scenarioDisableInService(w io.Writer) error {
	c, _, err := newScenarioController(w, []uint8{3, 3, 5, 1, 0, 0, 0, 0})
	if err != nil {
		return err
	}
	c.SetEnabled(2, true)
	c.SetLevel(2, true)
	if _, ok := c.Acknowledge(intc.DomainIRQ); !ok {
		return check(w, false, "line 2 acknowledged")
	}
	fmt.Fprintln(w, "-- line 2 disabled while active")
	c.SetEnabled(2, false)
	c.EndOfInterrupt(intc.DomainIRQ)
	l := c.Line(2)
	return check(w, !l.Active && c.State(intc.DomainIRQ) == intc.StateIdle,
		"line 2 active=%t after end of interrupt, state %v", l.Active, c.State(intc.DomainIRQ))
}

// scenarioStoppedTimer shows that a tick already queued when its source is
// disabled still runs but leaves line 4 alone.
func scenarioStoppedTimer(w io.Writer) error {
	c, _, err := newScenarioController(w, []uint8{0, 0, 0, 0, 2, 0, 0, 0})
	if err != nil {
		return err
	}
	c.SetEnabled(4, true)
	clock := vclock.New()
	const tick = time.Millisecond
	enabled := true
	fired := 0
	var arm func()
	arm = func() {
		clock.After(tick, func() {
			fired++
			if !enabled {
				fmt.Fprintf(w, "   %v tick %d: timer stopped, no request\n", clock.Now(), fired)
				return
			}
			fmt.Fprintf(w, "   %v tick %d: line 4 asserted\n", clock.Now(), fired)
			c.SetLevel(4, true)
			arm()
		})
	}
	arm()

	clock.Advance(tick)
	if _, ok := c.Acknowledge(intc.DomainIRQ); !ok {
		return check(w, false, "tick 1 acknowledged")
	}
	c.SetLevel(4, false)
	c.EndOfInterrupt(intc.DomainIRQ)
	fmt.Fprintln(w, "-- timer disabled before tick 2")
	enabled = false
	clock.Advance(tick)
	return check(w, fired == 2 && !c.Line(4).Pending, "tick 2 fired (%d ticks) without re-pending line 4", fired)
}
