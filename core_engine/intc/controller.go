package intc

import (
	"errors"
	"fmt"
	"log"
)

// ErrConfig marks a controller that was described incorrectly by the board.
var ErrConfig = errors.New("intc: bad configuration")

// OutputLine is the controller side of a CPU interrupt input.
type OutputLine interface {
	SetLevel(level bool)
}

// State is the per-domain position of the acknowledge cycle.
type State uint8

const (
	StateIdle State = iota
	StateSignaled
	StateInService
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSignaled:
		return "SIGNALED"
	case StateInService:
		return "IN_SERVICE"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Config describes one controller instance.
type Config struct {
	Name  string
	Lines int
	// Domains is 1 for single-output controllers, 2 for IRQ/FIQ split.
	Domains    int
	StackDepth int
	// Baseline is the current priority when nothing is in service.
	Baseline       uint8
	SpuriousVector uint32
	// AckLockout freezes the signalled candidate until the CPU acknowledges it.
	AckLockout bool
	// AutoEOI completes service as part of the acknowledge read.
	AutoEOI bool
	Logger  *log.Logger
	Debug   bool
}

func (c *Config) validate() error {
	if c.Lines <= 0 {
		return fmt.Errorf("%w: %s: line count %d", ErrConfig, c.Name, c.Lines)
	}
	if c.Domains < 1 || c.Domains > int(numDomains) {
		return fmt.Errorf("%w: %s: domain count %d", ErrConfig, c.Name, c.Domains)
	}
	if c.StackDepth < 1 {
		return fmt.Errorf("%w: %s: stack depth %d", ErrConfig, c.Name, c.StackDepth)
	}
	return nil
}

type domainState struct {
	current    uint8
	priorities *LIFO[uint8]
	inService  *LIFO[int]
	pendingAck int
	output     bool
	out        OutputLine
}

// Controller aggregates interrupt lines, resolves the most urgent one per
// domain and runs the signal/acknowledge/end-of-interrupt cycle.
//
// A Controller is not safe for concurrent use. The board serializes access.
type Controller struct {
	cfg    Config
	lines  []Line
	dom    []domainState
	logger *log.Logger
}

// NewController builds a controller with every line disabled, idle and at
// priority 0. Line i gets vector i.
func NewController(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:    cfg,
		lines:  make([]Line, cfg.Lines),
		dom:    make([]domainState, cfg.Domains),
		logger: cfg.Logger,
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	for d := range c.dom {
		c.dom[d].priorities = NewLIFO[uint8](cfg.StackDepth)
		c.dom[d].inService = NewLIFO[int](cfg.StackDepth)
	}
	c.Reset()
	return c, nil
}

// Connect attaches the CPU input driven by domain d.
func (c *Controller) Connect(d Domain, out OutputLine) error {
	if int(d) >= len(c.dom) {
		return fmt.Errorf("%w: %s has no %v output", ErrConfig, c.cfg.Name, d)
	}
	c.dom[d].out = out
	if out != nil {
		out.SetLevel(c.dom[d].output)
	}
	return nil
}

// Reset returns every line and domain to the power-on state. Output lines
// that were high are lowered.
func (c *Controller) Reset() {
	for i := range c.lines {
		c.lines[i] = Line{ID: i, Vector: uint32(i)}
	}
	for d := range c.dom {
		ds := &c.dom[d]
		ds.current = c.cfg.Baseline
		ds.priorities.Reset()
		ds.inService.Reset()
		ds.pendingAck = -1
		c.drive(Domain(d), false)
	}
}

func (c *Controller) Name() string     { return c.cfg.Name }
func (c *Controller) NumLines() int    { return len(c.lines) }
func (c *Controller) NumDomains() int  { return len(c.dom) }
func (c *Controller) Config() Config   { return c.cfg }
func (c *Controller) Spurious() uint32 { return c.cfg.SpuriousVector }

func (c *Controller) line(id int) *Line {
	if id < 0 || id >= len(c.lines) {
		panic(fmt.Sprintf("%s: interrupt line %d out of range [0,%d)", c.cfg.Name, id, len(c.lines)))
	}
	return &c.lines[id]
}

func (c *Controller) domain(d Domain) *domainState {
	if int(d) >= len(c.dom) {
		panic(fmt.Sprintf("%s: no %v domain", c.cfg.Name, d))
	}
	return &c.dom[d]
}

// Line returns a copy of the state of line id.
func (c *Controller) Line(id int) Line { return *c.line(id) }

// Lines returns a copy of the line table.
func (c *Controller) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// SetLevel drives the raw input of line id. Asserting always records the
// line as pending, even while it is disabled. Deasserting clears pending.
// An id outside the table is a wiring bug and panics.
func (c *Controller) SetLevel(id int, level bool) {
	l := c.line(id)
	l.Level = level
	l.Pending = level
	if c.cfg.Debug {
		c.logger.Printf("%s: line %d level=%t", c.cfg.Name, id, level)
	}
	c.update(l.Domain)
}

// ClearPending drops a latched request without touching the input level.
func (c *Controller) ClearPending(id int) {
	l := c.line(id)
	l.Pending = false
	c.update(l.Domain)
}

func (c *Controller) SetEnabled(id int, enabled bool) {
	l := c.line(id)
	l.Enabled = enabled
	c.update(l.Domain)
}

func (c *Controller) SetPriority(id int, priority uint8) {
	l := c.line(id)
	l.Priority = priority
	c.update(l.Domain)
}

func (c *Controller) SetVector(id int, vector uint32) {
	c.line(id).Vector = vector
}

// SetDomain moves line id to domain d. Both domains are re-resolved.
func (c *Controller) SetDomain(id int, d Domain) {
	c.domain(d)
	l := c.line(id)
	if l.Domain == d {
		return
	}
	old := l.Domain
	l.Domain = d
	c.update(old)
	c.update(d)
}

func (c *Controller) SetTrigger(id int, t Trigger) {
	l := c.line(id)
	l.Trigger = t
	if t == TriggerLevel {
		l.Pending = l.Level
		c.update(l.Domain)
	}
}

func (c *Controller) SetClass(id int, class Class) { c.line(id).Class = class }

// ClearActive ends service of line id without touching the priority stack.
func (c *Controller) ClearActive(id int) {
	l := c.line(id)
	l.Active = false
	c.update(l.Domain)
}

// SetCurrentPriority overrides the current priority of domain d, as a
// task-priority register write does. Lowering it may let pending lines in.
func (c *Controller) SetCurrentPriority(d Domain, p uint8) {
	c.domain(d).current = p
	c.update(d)
}

func (c *Controller) CurrentPriority(d Domain) uint8 { return c.domain(d).current }

// Output reports the level of the CPU line driven by domain d.
func (c *Controller) Output(d Domain) bool { return c.domain(d).output }

// PendingAck returns the line remembered for the next acknowledge.
func (c *Controller) PendingAck(d Domain) (int, bool) {
	id := c.domain(d).pendingAck
	return id, id >= 0
}

// State reports where domain d is in the acknowledge cycle. A signalled
// domain reports SIGNALED even while an outer interrupt is in service.
func (c *Controller) State(d Domain) State {
	ds := c.domain(d)
	switch {
	case ds.pendingAck >= 0:
		return StateSignaled
	case ds.inService.Len() > 0 || ds.priorities.Len() > 0:
		return StateInService
	}
	return StateIdle
}

// Depth returns how many saved priorities domain d holds.
func (c *Controller) Depth(d Domain) int { return c.domain(d).priorities.Len() }

func (c *Controller) eligible(id int, d Domain) bool {
	l := &c.lines[id]
	return l.candidate(d) && l.Priority > c.dom[d].current
}

// update re-runs the resolver for domain d and drives its output. With the
// acknowledge lockout on, a signalled candidate is kept until acknowledged.
func (c *Controller) update(d Domain) {
	if int(d) >= len(c.dom) {
		return
	}
	ds := &c.dom[d]
	if c.cfg.AckLockout && ds.pendingAck >= 0 {
		return
	}
	cand, ok := Resolve(c.lines, ds.current, d)
	if !ok {
		ds.pendingAck = -1
		c.drive(d, false)
		return
	}
	ds.pendingAck = cand.ID
	c.drive(d, true)
}

func (c *Controller) drive(d Domain, level bool) {
	ds := &c.dom[d]
	if ds.output == level {
		return
	}
	ds.output = level
	if c.cfg.Debug {
		c.logger.Printf("%s: %v output=%t", c.cfg.Name, d, level)
	}
	if ds.out != nil {
		ds.out.SetLevel(level)
	}
}

// Acknowledge is the side-effecting read of the acknowledge register. The
// signalled line, or the best eligible one if that line was withdrawn, is
// moved into service and its vector returned. Without a candidate the
// spurious vector is returned and ok is false.
func (c *Controller) Acknowledge(d Domain) (vector uint32, ok bool) {
	ds := c.domain(d)
	id := -1
	if ds.pendingAck >= 0 && c.eligible(ds.pendingAck, d) {
		id = ds.pendingAck
	} else if cand, found := Resolve(c.lines, ds.current, d); found {
		id = cand.ID
	}
	ds.pendingAck = -1
	c.drive(d, false)
	if id < 0 {
		if c.cfg.Debug {
			c.logger.Printf("%s: %v spurious acknowledge", c.cfg.Name, d)
		}
		c.update(d)
		return c.cfg.SpuriousVector, false
	}

	l := &c.lines[id]
	if ds.priorities.Push(ds.current) {
		c.logger.Printf("%s: %v priority stack full, oldest entry dropped", c.cfg.Name, d)
	}
	ds.inService.Push(id)
	ds.current = l.Priority
	l.Pending = l.Trigger == TriggerLevel && l.Level
	l.Active = true
	vector = l.Vector
	if c.cfg.Debug {
		c.logger.Printf("%s: %v acknowledge line %d vector 0x%x", c.cfg.Name, d, id, vector)
	}

	if c.cfg.AutoEOI {
		c.EndOfInterrupt(d)
	} else {
		c.update(d)
	}
	return vector, true
}

// EndOfInterrupt completes the innermost service in domain d: its line is
// no longer active, the saved priority is restored and the domain is
// re-resolved. Disabling a line never prevents its completion. With nothing
// in service the current priority falls back to the baseline.
func (c *Controller) EndOfInterrupt(d Domain) {
	ds := c.domain(d)
	id, ok := ds.inService.Pop()
	if !ok {
		id = c.activeAt(d, ds.current)
	}
	if id >= 0 {
		c.lines[id].Active = false
	}
	p, ok := ds.priorities.Pop()
	if !ok {
		p = c.cfg.Baseline
	}
	ds.current = p
	if c.cfg.Debug {
		c.logger.Printf("%s: %v end of interrupt line %d, priority %d", c.cfg.Name, d, id, p)
	}
	c.update(d)
}

// activeAt finds the lowest active line of domain d at priority p, used when
// the in-service record was evicted by deep nesting.
func (c *Controller) activeAt(d Domain, p uint8) int {
	for i := range c.lines {
		l := &c.lines[i]
		if l.Active && l.Domain == d && l.Priority == p {
			return i
		}
	}
	return -1
}
