package intc

import (
	"encoding/json"
	"fmt"
	"sync"

	"example.com/mcu-vpic/core_engine/devices"
	"example.com/mcu-vpic/core_engine/vclock"
)

type epicTimer struct {
	t      *vclock.Timer
	bcr    uint32
	toggle bool
}

// EPIC is the tsi107 embedded programmable interrupt controller: four global
// timers, sixteen external or serial sources and the I2C unit resolved into
// one processor output. A signalled source is held until IACK is read.
type EPIC struct {
	lock  sync.Mutex
	core  *Controller
	guest *devices.GuestLog
	opts  Options

	gcr, eicr, pi, svr, tfrr uint32
	vpr                      [EPIC_LINES]uint32 // without the A bit
	dest                     [EPIC_LINES]uint32
	level                    [EPIC_LINES]bool
	timers                   [EPIC_TIMERS]*epicTimer

	onReset func()
}

func NewEPIC(opts Options) (*EPIC, error) {
	if opts.Clock == nil {
		return nil, fmt.Errorf("%w: EPIC needs a clock for its global timers", ErrConfig)
	}
	if opts.TimerHz == 0 {
		opts.TimerHz = EPIC_TIMER_HZ
	}
	core, err := NewController(Config{
		Name:           "EPIC",
		Lines:          EPIC_LINES,
		Domains:        1,
		StackDepth:     EPIC_DEPTH,
		SpuriousVector: EPIC_SVR_RESET,
		Baseline:       EPIC_PCTPR_RESET,
		AckLockout:     true,
		Logger:         opts.Logger,
		Debug:          opts.Debug,
	})
	if err != nil {
		return nil, err
	}
	e := &EPIC{
		core:  core,
		guest: devices.NewGuestLog("EPIC", opts.Logger),
		opts:  opts,
	}
	for i := range e.timers {
		id := i
		gt := &epicTimer{}
		gt.t = vclock.NewTimer(opts.Clock, func() { e.timerExpired(id) })
		gt.t.SetFrequency(opts.TimerHz)
		e.timers[i] = gt
	}
	e.reset()
	return e, nil
}

func (e *EPIC) Name() string { return "EPIC" }
func (e *EPIC) Size() uint64 { return EPIC_SIZE }

// SetResetHandler installs the hook run when software sets PI[P0].
func (e *EPIC) SetResetHandler(fn func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.onReset = fn
}

func (e *EPIC) Reset() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.reset()
	e.level = [EPIC_LINES]bool{}
}

// reset clears pending and in-service state, masks every source and
// inhibits the timers. External input levels are sampled again afterwards.
func (e *EPIC) reset() {
	e.core.Reset()
	e.gcr = 0
	e.eicr = EPIC_EICR_RESET
	e.pi = 0
	e.svr = EPIC_SVR_RESET
	e.tfrr = 0
	for id := 0; id < EPIC_LINES; id++ {
		e.dest[id] = EPIC_DR_P0
		e.applyVPR(id, VPR_M)
	}
	for _, gt := range e.timers {
		gt.t.Stop()
		gt.t.SetLimit(0, true)
		gt.bcr = GTBCR_CI
		gt.toggle = false
	}
	for id, high := range e.level {
		if high {
			e.core.SetLevel(id, true)
		}
	}
}

func (e *EPIC) Connect(d Domain, out OutputLine) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.core.Connect(d, out)
}

// Input returns external source n (IRQ0-15) or, for n == 16, the I2C source.
func (e *EPIC) Input(n int) (devices.InterruptLine, error) {
	if n < 0 || n > EPIC_I2C_INPUT {
		return nil, fmt.Errorf("%w: EPIC has no input %d", ErrConfig, n)
	}
	id := EPIC_IRQ_BASE + n
	if n == EPIC_I2C_INPUT {
		id = EPIC_I2C_LINE
	}
	return pin{n: id, set: e.setInput}, nil
}

func (e *EPIC) setInput(id int, level bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.level[id] = level
	e.core.SetLevel(id, level)
}

func (e *EPIC) timerExpired(n int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	gt := e.timers[n]
	if inhibit, _ := DecodeGTBCR(gt.bcr); inhibit {
		return
	}
	gt.toggle = !gt.toggle
	e.core.SetLevel(n, true)
}

func (e *EPIC) Acknowledge(d Domain) (uint32, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.acknowledge()
}

func (e *EPIC) acknowledge() (uint32, bool) {
	v, ok := e.core.Acknowledge(DomainIRQ)
	if !ok {
		return e.svr & VPR_VECTOR_MASK, false
	}
	return v, true
}

func (e *EPIC) EndOfInterrupt(d Domain) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.core.EndOfInterrupt(DomainIRQ)
}

func (e *EPIC) Inspect(fn func(c *Controller)) {
	e.lock.Lock()
	defer e.lock.Unlock()
	fn(e.core)
}

func (e *EPIC) GuestErrors() uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.guest.Count()
}

// applyVPR stores a vector/priority write for line id and pushes it into the
// controller. VECTOR and PRIORITY are frozen while the source is in service.
// Polarity is recorded only: inputs arrive as logical levels.
func (e *EPIC) applyVPR(id int, val uint32) {
	const fields = VPR_PRIORITY_MASK | VPR_VECTOR_MASK
	val &^= VPR_A
	if id < EPIC_IRQ_BASE || id == EPIC_I2C_LINE {
		val &^= VPR_P | VPR_S
	}
	if e.core.line(id).Active && (val^e.vpr[id])&fields != 0 {
		e.guest.Printf("vector/priority of active source %d is read-only", id)
		val = val&^fields | e.vpr[id]&fields
	}
	e.vpr[id] = val
	f := DecodeVPR(val)
	e.core.SetVector(id, uint32(f.Vector))
	trigger := TriggerEdge
	if f.Sense {
		trigger = TriggerLevel
	}
	e.core.SetTrigger(id, trigger)
	e.core.SetPriority(id, f.Priority)
	e.core.SetEnabled(id, !f.Mask && e.dest[id]&EPIC_DR_P0 != 0)
}

// readVPR reports the stored fields with the live activity bit. Reserved
// bits read as zero.
func (e *EPIC) readVPR(id int) uint32 {
	f := DecodeVPR(e.vpr[id])
	f.Active = e.core.line(id).Active
	return f.Encode()
}

func (e *EPIC) writeDest(id int, val uint32) {
	e.dest[id] = val & EPIC_DR_P0
	e.applyVPR(id, e.vpr[id])
}

// source maps a per-source register offset to its line and the register
// within the source block.
func (e *EPIC) source(offset uint64) (id int, reg uint64, ok bool) {
	switch {
	case offset >= EPIC_GTCCR0 && offset < EPIC_GTCCR0+EPIC_TIMERS*EPIC_GT_STRIDE:
		rel := offset - EPIC_GTCCR0
		return int(rel / EPIC_GT_STRIDE), rel % EPIC_GT_STRIDE, true
	case offset >= EPIC_IVPR0 && offset < EPIC_IVPR0+EPIC_EXTERNAL*EPIC_IRQ_STRIDE:
		rel := offset - EPIC_IVPR0
		reg := rel % EPIC_IRQ_STRIDE
		if reg == 0 {
			reg = EPIC_GT_VPR
		} else if reg == EPIC_IRQ_DR {
			reg = EPIC_GT_DR
		} else {
			return 0, 0, false
		}
		return EPIC_IRQ_BASE + int(rel/EPIC_IRQ_STRIDE), reg, true
	case offset == EPIC_IIVPR:
		return EPIC_I2C_LINE, EPIC_GT_VPR, true
	case offset == EPIC_IIDR:
		return EPIC_I2C_LINE, EPIC_GT_DR, true
	}
	return 0, 0, false
}

func (e *EPIC) Read(offset uint64, size uint8) uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.guest.Word(offset, size) {
		return 0
	}
	switch offset {
	case EPIC_FRR:
		return uint64(EPIC_FRR_VALUE)
	case EPIC_GCR:
		return uint64(e.gcr)
	case EPIC_EICR:
		return uint64(e.eicr)
	case EPIC_EVI:
		return uint64(EPIC_EVI_VALUE)
	case EPIC_PI:
		return uint64(e.pi)
	case EPIC_SVR:
		return uint64(e.svr)
	case EPIC_TFRR:
		return uint64(e.tfrr)
	case EPIC_PCTPR:
		return uint64(e.core.CurrentPriority(DomainIRQ))
	case EPIC_IACK:
		v, _ := e.acknowledge()
		return uint64(v)
	case EPIC_EOI:
		return 0
	}
	id, reg, ok := e.source(offset)
	if !ok {
		e.guest.BadOffset("read", offset)
		return 0
	}
	switch reg {
	case 0:
		gt := e.timers[id]
		return uint64(EncodeGTCCR(gt.toggle, uint32(gt.t.Count())))
	case EPIC_GT_BCR:
		return uint64(e.timers[id].bcr)
	case EPIC_GT_VPR:
		return uint64(e.readVPR(id))
	case EPIC_GT_DR:
		return uint64(e.dest[id])
	}
	return 0
}

func (e *EPIC) Write(offset uint64, size uint8, value uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	switch offset {
	case EPIC_FRR, EPIC_EVI, EPIC_IACK:
		e.guest.ReadOnly("FRR/EVI/IACK", offset, value)
		return
	case EPIC_GCR:
		if val&EPIC_GCR_RESET != 0 {
			e.reset()
		}
		e.gcr = val &^ EPIC_GCR_RESET
		return
	case EPIC_EICR:
		e.eicr = val
		return
	case EPIC_PI:
		e.pi = val & EPIC_PI_P0
		if e.pi != 0 && e.onReset != nil {
			e.onReset()
		}
		return
	case EPIC_SVR:
		e.svr = val & VPR_VECTOR_MASK
		return
	case EPIC_TFRR:
		e.tfrr = val
		return
	case EPIC_PCTPR:
		e.core.SetCurrentPriority(DomainIRQ, uint8(val&0xF))
		return
	case EPIC_EOI:
		e.core.EndOfInterrupt(DomainIRQ)
		return
	}
	id, reg, ok := e.source(offset)
	if !ok {
		e.guest.BadOffset("write", offset)
		return
	}
	switch reg {
	case 0:
		e.guest.ReadOnly("GTCCR", offset, value)
	case EPIC_GT_BCR:
		e.writeGTBCR(id, val)
	case EPIC_GT_VPR:
		e.applyVPR(id, val)
	case EPIC_GT_DR:
		e.writeDest(id, val)
	}
}

// writeGTBCR starts the timer on a CI 1->0 transition and stops it on 0->1.
// A new base count while running takes effect at the next reload.
func (e *EPIC) writeGTBCR(n int, val uint32) {
	gt := e.timers[n]
	wasInhibited, _ := DecodeGTBCR(gt.bcr)
	inhibit, base := DecodeGTBCR(val)
	gt.bcr = val
	switch {
	case wasInhibited && !inhibit:
		gt.toggle = false
		gt.t.SetLimit(uint64(base), true)
		gt.t.Run(false)
	case !wasInhibited && inhibit:
		gt.t.Stop()
	case !inhibit:
		gt.t.SetLimit(uint64(base), false)
	}
}

type epicTimerState struct {
	BCR     uint32 `json:"bcr"`
	Toggle  bool   `json:"toggle"`
	Count   uint64 `json:"count"`
	Running bool   `json:"running"`
}

type epicState struct {
	Core   Snapshot                    `json:"core"`
	GCR    uint32                      `json:"gcr"`
	EICR   uint32                      `json:"eicr"`
	PI     uint32                      `json:"pi"`
	SVR    uint32                      `json:"svr"`
	TFRR   uint32                      `json:"tfrr"`
	VPR    [EPIC_LINES]uint32          `json:"vpr"`
	Dest   [EPIC_LINES]uint32          `json:"dest"`
	Level  [EPIC_LINES]bool            `json:"level"`
	Timers [EPIC_TIMERS]epicTimerState `json:"timers"`
}

func (e *EPIC) SaveState() ([]byte, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	s := epicState{
		Core: e.core.Snapshot(),
		GCR:  e.gcr, EICR: e.eicr, PI: e.pi, SVR: e.svr, TFRR: e.tfrr,
		VPR: e.vpr, Dest: e.dest, Level: e.level,
	}
	for i, gt := range e.timers {
		s.Timers[i] = epicTimerState{BCR: gt.bcr, Toggle: gt.toggle, Count: gt.t.Count(), Running: gt.t.Running()}
	}
	return json.Marshal(s)
}

func (e *EPIC) LoadState(data []byte) error {
	var s epicState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("EPIC: decode state: %w", err)
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.core.Restore(s.Core); err != nil {
		return err
	}
	e.gcr, e.eicr, e.pi, e.svr, e.tfrr = s.GCR, s.EICR, s.PI, s.SVR, s.TFRR
	e.vpr, e.dest, e.level = s.VPR, s.Dest, s.Level
	for i, gt := range e.timers {
		ts := s.Timers[i]
		gt.t.Stop()
		gt.bcr, gt.toggle = ts.BCR, ts.Toggle
		_, base := DecodeGTBCR(ts.BCR)
		gt.t.SetLimit(uint64(base), false)
		gt.t.SetCount(ts.Count)
		if ts.Running {
			gt.t.Run(false)
		}
	}
	return nil
}
