package devices

import (
	"log"
	"sync"

	"example.com/mcu-vpic/core_engine/vclock"
)

type pitChannel struct {
	timer *vclock.Timer
	ldval uint32
	tctrl uint32
	tflg  uint32
	irq   InterruptLine
	level bool
}

// PITDevice implements the MPC5675 periodic interrupt timer: four 32-bit
// down-counters reloading from LDVAL. A channel's line is high while its
// TIF flag and TIE enable are both set.
type PITDevice struct {
	lock     sync.Mutex
	guest    *GuestLog
	pitmcr   uint32
	channels [PIT_CHANNELS]*pitChannel
}

// NewPITDevice creates a PIT counting at hz (0 selects the 50 MHz
// peripheral clock). irqs[n] may be nil for an unwired channel.
func NewPITDevice(clock *vclock.Clock, hz uint64, irqs [PIT_CHANNELS]InterruptLine, logger *log.Logger) *PITDevice {
	if hz == 0 {
		hz = PIT_CLOCK_HZ
	}
	p := &PITDevice{guest: NewGuestLog("PITDevice", logger)}
	for i := range p.channels {
		n := i
		ch := &pitChannel{irq: irqs[i]}
		ch.timer = vclock.NewTimer(clock, func() { p.expired(n) })
		ch.timer.SetFrequency(hz)
		p.channels[i] = ch
	}
	p.reset()
	return p
}

func (p *PITDevice) Name() string { return "PIT" }
func (p *PITDevice) Size() uint64 { return PIT_SIZE }

func (p *PITDevice) Reset() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.reset()
}

func (p *PITDevice) reset() {
	p.pitmcr = PIT_MCR_MDIS
	for i, ch := range p.channels {
		ch.timer.Stop()
		ch.timer.SetLimit(0, true)
		ch.ldval, ch.tctrl, ch.tflg = 0, 0, 0
		p.update(i)
	}
}

// GuestErrors is the number of guest programming errors seen.
func (p *PITDevice) GuestErrors() uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.guest.Count()
}

func (p *PITDevice) update(n int) {
	ch := p.channels[n]
	level := ch.tflg&PIT_TFLG_TIF != 0 && ch.tctrl&PIT_TCTRL_TIE != 0
	if level == ch.level {
		return
	}
	ch.level = level
	if ch.irq != nil {
		ch.irq.SetLevel(level)
	}
}

// sync starts or stops channel n after a change to MDIS or TEN.
func (p *PITDevice) sync(n int) {
	ch := p.channels[n]
	run := p.pitmcr&PIT_MCR_MDIS == 0 && ch.tctrl&PIT_TCTRL_TEN != 0
	switch {
	case run && !ch.timer.Running():
		ch.timer.SetLimit(uint64(ch.ldval), true)
		ch.timer.Run(false)
	case !run && ch.timer.Running():
		ch.timer.Stop()
	}
}

// expired runs from the clock. A channel stopped since the event was queued
// is ignored by the timer itself; TEN is checked again here.
func (p *PITDevice) expired(n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := p.channels[n]
	if ch.tctrl&PIT_TCTRL_TEN == 0 || p.pitmcr&PIT_MCR_MDIS != 0 {
		return
	}
	ch.tflg |= PIT_TFLG_TIF
	p.update(n)
}

func (p *PITDevice) channel(offset uint64) (int, uint64, bool) {
	if offset < PIT_CH_BASE || offset >= PIT_CH_BASE+PIT_CHANNELS*PIT_CH_STRIDE {
		return 0, 0, false
	}
	rel := offset - PIT_CH_BASE
	return int(rel / PIT_CH_STRIDE), rel % PIT_CH_STRIDE, true
}

func (p *PITDevice) Read(offset uint64, size uint8) uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.guest.Word(offset, size) {
		return 0
	}
	if offset == PIT_PITMCR {
		return uint64(p.pitmcr)
	}
	n, reg, ok := p.channel(offset)
	if !ok {
		p.guest.BadOffset("read", offset)
		return 0
	}
	ch := p.channels[n]
	switch reg {
	case PIT_CH_LDVAL:
		return uint64(ch.ldval)
	case PIT_CH_CVAL:
		return ch.timer.Count()
	case PIT_CH_TCTRL:
		return uint64(ch.tctrl)
	case PIT_CH_TFLG:
		return uint64(ch.tflg)
	}
	return 0
}

func (p *PITDevice) Write(offset uint64, size uint8, value uint64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	if offset == PIT_PITMCR {
		p.pitmcr = val & PIT_MCR_MASK
		for n := range p.channels {
			p.sync(n)
		}
		return
	}
	n, reg, ok := p.channel(offset)
	if !ok {
		p.guest.BadOffset("write", offset)
		return
	}
	ch := p.channels[n]
	switch reg {
	case PIT_CH_LDVAL:
		// Takes effect at the next reload.
		ch.ldval = val
		ch.timer.SetLimit(uint64(val), false)
	case PIT_CH_CVAL:
		p.guest.ReadOnly("CVAL", offset, value)
	case PIT_CH_TCTRL:
		ch.tctrl = val & PIT_TCTRL_MASK
		p.sync(n)
		p.update(n)
	case PIT_CH_TFLG:
		ch.tflg &^= val & PIT_TFLG_TIF
		p.update(n)
	}
}
