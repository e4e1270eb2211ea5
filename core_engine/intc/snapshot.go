package intc

import "fmt"

// DomainSnapshot is the saved state of one resolution domain.
type DomainSnapshot struct {
	CurrentPriority uint8   `json:"current_priority"`
	PriorityStack   []uint8 `json:"priority_stack"`
	InService       []int   `json:"in_service"`
	PendingAck      int     `json:"pending_ack"`
	InAckCycle      bool    `json:"in_ack_cycle"`
	Output          bool    `json:"output"`
}

// Snapshot is the complete saved state of a Controller.
type Snapshot struct {
	Name    string           `json:"name"`
	Lines   []Line           `json:"lines"`
	Domains []DomainSnapshot `json:"domains"`
}

// Snapshot captures every line and domain field.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Name:    c.cfg.Name,
		Lines:   c.Lines(),
		Domains: make([]DomainSnapshot, len(c.dom)),
	}
	for d := range c.dom {
		ds := &c.dom[d]
		s.Domains[d] = DomainSnapshot{
			CurrentPriority: ds.current,
			PriorityStack:   ds.priorities.Items(),
			InService:       ds.inService.Items(),
			PendingAck:      ds.pendingAck,
			InAckCycle:      ds.pendingAck >= 0,
			Output:          ds.output,
		}
	}
	return s
}

// Restore loads a snapshot taken from a controller of the same shape and
// re-drives the output lines to the saved levels.
func (c *Controller) Restore(s Snapshot) error {
	if len(s.Lines) != len(c.lines) {
		return fmt.Errorf("%w: %s: snapshot has %d lines, want %d", ErrConfig, c.cfg.Name, len(s.Lines), len(c.lines))
	}
	if len(s.Domains) != len(c.dom) {
		return fmt.Errorf("%w: %s: snapshot has %d domains, want %d", ErrConfig, c.cfg.Name, len(s.Domains), len(c.dom))
	}
	for i, l := range s.Lines {
		if l.ID != i {
			return fmt.Errorf("%w: %s: snapshot line %d has id %d", ErrConfig, c.cfg.Name, i, l.ID)
		}
		if int(l.Domain) >= len(c.dom) {
			return fmt.Errorf("%w: %s: snapshot line %d in %v", ErrConfig, c.cfg.Name, i, l.Domain)
		}
	}
	for d, sd := range s.Domains {
		if sd.PendingAck >= len(c.lines) {
			return fmt.Errorf("%w: %s: snapshot pending line %d out of range", ErrConfig, c.cfg.Name, sd.PendingAck)
		}
		for _, id := range sd.InService {
			if id < 0 || id >= len(c.lines) {
				return fmt.Errorf("%w: %s: %v in-service line %d out of range", ErrConfig, c.cfg.Name, Domain(d), id)
			}
		}
	}

	copy(c.lines, s.Lines)
	for d, sd := range s.Domains {
		ds := &c.dom[d]
		ds.current = sd.CurrentPriority
		ds.priorities.load(sd.PriorityStack)
		ds.inService.load(sd.InService)
		ds.pendingAck = sd.PendingAck
		if ds.pendingAck < 0 {
			ds.pendingAck = -1
		}
		ds.output = !sd.Output
		c.drive(Domain(d), sd.Output)
	}
	return nil
}
