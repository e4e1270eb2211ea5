package devices

import (
	"log"
	"math"
	"sync"
	"time"

	"example.com/mcu-vpic/core_engine/vclock"
)

// rtiBlock is one RTI counter block. While running, FRC held frc at time
// since with the prescaler (UC) at zero.
type rtiBlock struct {
	frc     uint32
	cpuc    uint32
	since   time.Duration
	phase   time.Duration // prescaler position while stopped
	running bool
}

// RTIDevice implements the TMS570 real-time interrupt module: two counter
// blocks, four compare units with auto-update and the digital windowed
// watchdog. Interrupts are level: a line is high while its INTFLAG bit and
// enable are both set.
type RTIDevice struct {
	lock   sync.Mutex
	guest  *GuestLog
	clock  *vclock.Clock
	period time.Duration
	irqs   [RTI_LINES]InterruptLine
	levels [RTI_LINES]bool

	gctrl, tbctrl, capctrl, compctrl uint32
	blocks                           [RTI_COUNTERS]rtiBlock
	ucLatch                          [RTI_COUNTERS]uint32
	comp, udcp                       [RTI_COMPARES]uint32
	tblcomp, tbhcomp                 uint32
	intena, intflag                  uint32

	// Next due time per source: compares 0-3 then overflow 0-1.
	due   [RTI_COMPARES + RTI_COUNTERS]time.Duration
	armed [RTI_COMPARES + RTI_COUNTERS]bool
	event *vclock.Event

	dwd      *vclock.Timer
	dwdctrl  uint32
	dwdprld  uint32
	wdstatus uint32
	wdkey    uint32
	keyArmed bool
	rxnctrl  uint32
	sizectrl uint32
	onDWD    func(nmi bool)
}

// NewRTIDevice creates an RTI clocked by RTICLK at hz (0 selects 10 MHz).
// irqs follows the line order compare 0-3, overflow 0-1, timebase. onDWD is
// called when the watchdog expires or is serviced wrongly; nmi reports the
// reaction selected in RTIWWDRXNCTRL.
func NewRTIDevice(clock *vclock.Clock, hz uint64, irqs [RTI_LINES]InterruptLine, onDWD func(nmi bool), logger *log.Logger) *RTIDevice {
	if hz == 0 {
		hz = RTI_CLOCK_HZ
	}
	r := &RTIDevice{
		guest:  NewGuestLog("RTIDevice", logger),
		clock:  clock,
		period: time.Second / time.Duration(hz),
		irqs:   irqs,
		onDWD:  onDWD,
	}
	r.dwd = vclock.NewTimer(clock, r.dwdExpired)
	r.dwd.SetFrequency(hz)
	r.reset()
	return r
}

func (r *RTIDevice) Name() string { return "RTI" }
func (r *RTIDevice) Size() uint64 { return RTI_SIZE }

func (r *RTIDevice) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reset()
}

func (r *RTIDevice) reset() {
	r.gctrl, r.tbctrl, r.capctrl, r.compctrl = 0, 0, 0, 0
	r.blocks = [RTI_COUNTERS]rtiBlock{}
	r.ucLatch = [RTI_COUNTERS]uint32{}
	r.comp = [RTI_COMPARES]uint32{}
	r.udcp = [RTI_COMPARES]uint32{}
	r.tblcomp, r.tbhcomp = 0, 0
	r.intena, r.intflag = 0, 0
	r.schedule()
	r.update()

	r.dwd.Stop()
	r.dwdctrl = RTI_DWD_DISABLED
	r.dwdprld = RTI_DWD_PRLD_RESET
	r.wdstatus = 0
	r.wdkey = RTI_WDKEY_SERVICE
	r.keyArmed = false
	r.rxnctrl = RTI_WWD_RESET
	r.sizectrl = RTI_WWD_SIZE_100
	r.dwd.SetLimit(r.dwdFull(), true)
}

func (r *RTIDevice) GuestErrors() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.guest.Count()
}

// tick is the FRC increment period of block b.
func (r *RTIDevice) tick(b int) time.Duration {
	div := time.Duration(r.blocks[b].cpuc) + 1
	if r.blocks[b].cpuc == 0 {
		div = 1<<32 + 1
	}
	return r.period * div
}

// normalize folds elapsed time into FRC so that since is the last increment.
func (r *RTIDevice) normalize(b int) {
	blk := &r.blocks[b]
	if !blk.running {
		return
	}
	t := r.tick(b)
	n := (r.clock.Now() - blk.since) / t
	blk.frc += uint32(n)
	blk.since += n * t
}

func (r *RTIDevice) frc(b int) uint32 {
	r.normalize(b)
	return r.blocks[b].frc
}

func (r *RTIDevice) uc(b int) uint32 {
	r.normalize(b)
	blk := &r.blocks[b]
	phase := blk.phase
	if blk.running {
		phase = r.clock.Now() - blk.since
	}
	return uint32(phase / r.period)
}

func (r *RTIDevice) setRunning(b int, run bool) {
	blk := &r.blocks[b]
	if blk.running == run {
		return
	}
	r.normalize(b)
	if run {
		blk.since = r.clock.Now() - blk.phase
	} else {
		blk.phase = r.clock.Now() - blk.since
	}
	blk.running = run
}

// dueIn returns when block b's FRC will have advanced by delta counts.
func (r *RTIDevice) dueIn(b int, delta uint64) (time.Duration, bool) {
	t := r.tick(b)
	if uint64(t) > 0 && delta > uint64(math.MaxInt64/2)/uint64(t) {
		return 0, false
	}
	return r.blocks[b].since + time.Duration(delta)*t, true
}

// schedule recomputes every compare and overflow deadline and queues one
// clock event for the earliest.
func (r *RTIDevice) schedule() {
	if r.event != nil {
		r.clock.Cancel(r.event)
		r.event = nil
	}
	r.armed = [RTI_COMPARES + RTI_COUNTERS]bool{}
	for b := 0; b < RTI_COUNTERS; b++ {
		if !r.blocks[b].running {
			continue
		}
		r.normalize(b)
		delta := uint64(1<<32) - uint64(r.blocks[b].frc)
		r.due[RTI_COMPARES+b], r.armed[RTI_COMPARES+b] = r.dueIn(b, delta)
	}
	for k := 0; k < RTI_COMPARES; k++ {
		b := int(r.compctrl>>(4*k)) & 1
		if !r.blocks[b].running {
			continue
		}
		delta := uint64(r.comp[k] - r.blocks[b].frc)
		if delta == 0 {
			delta = 1 << 32
		}
		r.due[k], r.armed[k] = r.dueIn(b, delta)
	}
	next, ok := time.Duration(0), false
	for i, at := range r.due {
		if r.armed[i] && (!ok || at < next) {
			next, ok = at, true
		}
	}
	if ok {
		r.event = r.clock.At(next, r.fire)
	}
}

func (r *RTIDevice) fire() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.event = nil
	now := r.clock.Now()
	for k := 0; k < RTI_COMPARES; k++ {
		if r.armed[k] && r.due[k] <= now {
			r.intflag |= RTI_INT_COMPARE0 << k
			r.comp[k] += r.udcp[k]
		}
	}
	for b := 0; b < RTI_COUNTERS; b++ {
		if r.armed[RTI_COMPARES+b] && r.due[RTI_COMPARES+b] <= now {
			r.intflag |= RTI_INT_OVERFLOW0 << b
		}
	}
	r.schedule()
	r.update()
}

func rtiLineBit(line int) uint32 {
	switch {
	case line < RTI_COMPARES:
		return RTI_INT_COMPARE0 << line
	case line < RTI_LINE_TIMEBASE:
		return RTI_INT_OVERFLOW0 << (line - RTI_LINE_OVERFLOW0)
	}
	return RTI_INT_TIMEBASE
}

func (r *RTIDevice) update() {
	pending := r.intflag & r.intena
	for i := range r.irqs {
		level := pending&rtiLineBit(i) != 0
		if level == r.levels[i] {
			continue
		}
		r.levels[i] = level
		if r.irqs[i] != nil {
			r.irqs[i].SetLevel(level)
		}
	}
}

// dwdFull is the watchdog expiry count: (DWDPRLD+1) * 2^13 RTICLK cycles.
func (r *RTIDevice) dwdFull() uint64 {
	return (uint64(r.dwdprld)+1)<<13 - 1
}

func (r *RTIDevice) dwdEnabled() bool { return r.dwdctrl == RTI_DWD_ENABLE_KEY }

// windowOpen reports whether a service now falls inside the configured
// window at the end of the watchdog period.
func (r *RTIDevice) windowOpen() bool {
	shift := 0
	switch r.sizectrl {
	case 0x50:
		shift = 1
	case 0x500:
		shift = 2
	case 0x5000:
		shift = 3
	case 0x50000:
		shift = 4
	case 0x500000:
		shift = 5
	}
	return r.dwd.Count() <= r.dwdFull()>>shift
}

func (r *RTIDevice) dwdViolation(status uint32, why string) {
	r.wdstatus |= status
	nmi := r.rxnctrl == RTI_WWD_NMI
	r.guest.logger.Printf("RTIDevice: digital watchdog %s (nmi=%t)", why, nmi)
	if r.onDWD != nil {
		r.onDWD(nmi)
	}
}

func (r *RTIDevice) dwdExpired() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.dwdEnabled() {
		return
	}
	r.dwdViolation(RTI_WDST_DWD|RTI_WDST_END|RTI_WDST_DWWD, "expired")
}

func (r *RTIDevice) writeKey(val uint32) {
	r.wdkey = val & 0xFFFF
	if !r.dwdEnabled() {
		return
	}
	switch {
	case r.wdkey == RTI_WDKEY_ARM:
		r.keyArmed = true
	case r.wdkey == RTI_WDKEY_SERVICE && r.keyArmed:
		r.keyArmed = false
		if !r.windowOpen() {
			r.dwdViolation(RTI_WDST_START|RTI_WDST_DWWD, "serviced before window")
			return
		}
		r.dwd.SetCount(r.dwdFull())
	default:
		r.keyArmed = false
		r.dwdViolation(RTI_WDST_KEY, "bad key sequence")
	}
}

func (r *RTIDevice) Read(offset uint64, size uint8) uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.guest.Word(offset, size) {
		return 0
	}
	if offset >= RTI_COMP0 && offset < RTI_TBLCOMP {
		k := (offset - RTI_COMP0) / 8
		if offset&4 != 0 {
			return uint64(r.udcp[k])
		}
		return uint64(r.comp[k])
	}
	if offset >= RTI_FRC0 && offset < RTI_COMP0 {
		b := int((offset - RTI_FRC0) / RTI_BLOCK_STEP)
		switch RTI_FRC0 + (offset-RTI_FRC0)%RTI_BLOCK_STEP {
		case RTI_FRC0:
			// Reading FRC latches UC.
			r.ucLatch[b] = r.uc(b)
			return uint64(r.frc(b))
		case RTI_UC0:
			return uint64(r.ucLatch[b])
		case RTI_CPUC0:
			return uint64(r.blocks[b].cpuc)
		case RTI_CAFRC0, RTI_CAUC0:
			return 0
		}
	}
	switch offset {
	case RTI_GCTRL:
		return uint64(r.gctrl)
	case RTI_TBCTRL:
		return uint64(r.tbctrl)
	case RTI_CAPCTRL:
		return uint64(r.capctrl)
	case RTI_COMPCTRL:
		return uint64(r.compctrl)
	case RTI_TBLCOMP:
		return uint64(r.tblcomp)
	case RTI_TBHCOMP:
		return uint64(r.tbhcomp)
	case RTI_SETINTENA, RTI_CLEARINTENA:
		return uint64(r.intena)
	case RTI_INTFLAG:
		return uint64(r.intflag)
	case RTI_DWDCTRL:
		return uint64(r.dwdctrl)
	case RTI_DWDPRLD:
		return uint64(r.dwdprld)
	case RTI_WDSTATUS:
		return uint64(r.wdstatus)
	case RTI_WDKEY:
		return uint64(r.wdkey)
	case RTI_DWDCNTR:
		if r.dwdEnabled() {
			return r.dwd.Count()
		}
		return r.dwdFull()
	case RTI_WWDRXNCTRL:
		return uint64(r.rxnctrl)
	case RTI_WWDSIZECTRL:
		return uint64(r.sizectrl)
	}
	r.guest.BadOffset("read", offset)
	return 0
}

func (r *RTIDevice) Write(offset uint64, size uint8, value uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	if offset >= RTI_COMP0 && offset < RTI_TBLCOMP {
		k := (offset - RTI_COMP0) / 8
		if offset&4 != 0 {
			r.udcp[k] = val
		} else {
			r.comp[k] = val
			r.schedule()
		}
		return
	}
	if offset >= RTI_FRC0 && offset < RTI_COMP0 {
		r.writeBlock(int((offset-RTI_FRC0)/RTI_BLOCK_STEP), RTI_FRC0+(offset-RTI_FRC0)%RTI_BLOCK_STEP, offset, val)
		return
	}
	switch offset {
	case RTI_GCTRL:
		r.gctrl = val
		r.setRunning(0, val&RTI_GCTRL_CNT0EN != 0)
		r.setRunning(1, val&RTI_GCTRL_CNT1EN != 0)
		r.schedule()
	case RTI_TBCTRL:
		r.tbctrl = val
	case RTI_CAPCTRL:
		r.capctrl = val
	case RTI_COMPCTRL:
		r.compctrl = val
		r.schedule()
	case RTI_TBLCOMP, RTI_TBHCOMP:
		if r.tbctrl&RTI_TBCTRL_TBEXT != 0 {
			r.guest.Printf("timebase compare written with external timebase selected")
			return
		}
		if offset == RTI_TBLCOMP {
			r.tblcomp = val
		} else {
			r.tbhcomp = val
		}
	case RTI_SETINTENA:
		r.intena |= val & RTI_INT_MASK
		r.update()
	case RTI_CLEARINTENA:
		r.intena &^= val
		r.update()
	case RTI_INTFLAG:
		r.intflag &^= val
		r.update()
	case RTI_DWDCTRL:
		if val != RTI_DWD_ENABLE_KEY {
			r.guest.Printf("DWDCTRL write 0x%x ignored", val)
			return
		}
		if !r.dwdEnabled() {
			r.dwdctrl = val
			r.dwd.SetLimit(r.dwdFull(), true)
			r.dwd.Run(true)
		}
	case RTI_DWDPRLD:
		if r.dwdEnabled() {
			r.guest.Printf("DWDPRLD is locked while the watchdog runs")
			return
		}
		r.dwdprld = val & RTI_DWD_PRLD_MASK
		r.dwd.SetLimit(r.dwdFull(), true)
	case RTI_WDSTATUS:
		r.wdstatus &^= val & RTI_WDST_MASK
	case RTI_WDKEY:
		r.writeKey(val)
	case RTI_DWDCNTR:
		r.guest.ReadOnly("DWDCNTR", offset, value)
	case RTI_WWDRXNCTRL:
		r.rxnctrl = val & 0xF
	case RTI_WWDSIZECTRL:
		r.sizectrl = val
	default:
		r.guest.BadOffset("write", offset)
	}
}

func (r *RTIDevice) writeBlock(b int, reg, offset uint64, val uint32) {
	blk := &r.blocks[b]
	switch reg {
	case RTI_FRC0:
		r.normalize(b)
		blk.frc = val
	case RTI_UC0:
		phase := time.Duration(val) * r.period
		if blk.running {
			r.normalize(b)
			blk.since = r.clock.Now() - phase
		} else {
			blk.phase = phase
		}
	case RTI_CPUC0:
		if b == 0 && r.tbctrl&RTI_TBCTRL_TBEXT != 0 {
			r.guest.Printf("CPUC0 written with external timebase selected")
			return
		}
		r.normalize(b)
		blk.cpuc = val
	case RTI_CAFRC0, RTI_CAUC0:
		r.guest.ReadOnly("capture", offset, uint64(val))
		return
	default:
		r.guest.BadOffset("write", offset)
		return
	}
	r.schedule()
}
