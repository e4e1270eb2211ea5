package intc

import "fmt"

// Domain is an independent resolution group inside one controller.
// Single-domain controllers put every line in DomainIRQ.
type Domain uint8

const (
	DomainIRQ Domain = iota
	DomainFIQ
	numDomains
)

func (d Domain) String() string {
	switch d {
	case DomainIRQ:
		return "IRQ"
	case DomainFIQ:
		return "FIQ"
	}
	return fmt.Sprintf("Domain(%d)", uint8(d))
}

// Trigger selects how the raw input level maps onto the pending flag.
type Trigger uint8

const (
	// TriggerEdge latches pending on assert. Accepting the line clears it.
	TriggerEdge Trigger = iota
	// TriggerLevel keeps pending tied to the input level, so a line still held
	// high after service re-pends.
	TriggerLevel
)

// Class records who drives a line.
type Class uint8

const (
	ClassPeripheral Class = iota
	ClassSoftware
)

// Line is the per-source state kept by a Controller.
type Line struct {
	ID       int     `json:"id"`
	Enabled  bool    `json:"enabled"`
	Pending  bool    `json:"pending"`
	Active   bool    `json:"active"`
	Priority uint8   `json:"priority"`
	Vector   uint32  `json:"vector"`
	Domain   Domain  `json:"domain"`
	Class    Class   `json:"class"`
	Trigger  Trigger `json:"trigger"`
	Level    bool    `json:"level"`
}

// candidate reports whether l may be selected in domain d at all, ignoring
// the current priority.
func (l *Line) candidate(d Domain) bool {
	return l.Pending && l.Enabled && l.Domain == d
}

// Resolve picks the line that should be signalled next in domain d.
//
// Only pending, enabled lines of domain d are considered. The highest
// priority wins and the lowest id breaks ties. The winner is rejected when
// its priority does not exceed current.
func Resolve(lines []Line, current uint8, d Domain) (Line, bool) {
	best := -1
	for i := range lines {
		l := &lines[i]
		if !l.candidate(d) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := &lines[best]
		if l.Priority > b.Priority || (l.Priority == b.Priority && l.ID < b.ID) {
			best = i
		}
	}
	if best < 0 || lines[best].Priority <= current {
		return Line{}, false
	}
	return lines[best], true
}
