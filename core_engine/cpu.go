package core_engine

import (
	"sync"

	"example.com/mcu-vpic/core_engine/intc"
)

// CPU stands in for the processor core: it records the level of each
// interrupt input the controller drives and the reset requests raised by
// watchdogs and the controller. Instruction execution is not modelled.
type CPU struct {
	lock   sync.Mutex
	level  [2]bool
	raised [2]uint64
	resets uint64
}

type cpuPin struct {
	cpu *CPU
	d   intc.Domain
}

func (p cpuPin) SetLevel(level bool) {
	p.cpu.lock.Lock()
	defer p.cpu.lock.Unlock()
	if level && !p.cpu.level[p.d] {
		p.cpu.raised[p.d]++
	}
	p.cpu.level[p.d] = level
}

// Pin returns the input driven by domain d of the controller.
func (c *CPU) Pin(d intc.Domain) intc.OutputLine { return cpuPin{cpu: c, d: d} }

func (c *CPU) IRQ() bool { return c.Level(intc.DomainIRQ) }
func (c *CPU) FIQ() bool { return c.Level(intc.DomainFIQ) }

func (c *CPU) Level(d intc.Domain) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.level[d]
}

// Raised counts low-to-high transitions of the input fed by domain d.
func (c *CPU) Raised(d intc.Domain) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.raised[d]
}

// Resets counts reset requests delivered to the core.
func (c *CPU) Resets() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.resets
}

func (c *CPU) reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.resets++
}
