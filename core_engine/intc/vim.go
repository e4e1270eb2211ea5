package intc

import (
	"encoding/json"
	"fmt"
	"sync"

	"example.com/mcu-vpic/core_engine/devices"
)

// VIM is the TMS570 vectored interrupt manager. Each of its 96 channels is a
// controller line; channel c reports index c+1 and index 0 means no
// interrupt. Requests reach channels through the CHANCTRL map. All channels
// share one priority so the lowest channel wins, and reading an index or
// vector register both acknowledges and completes the interrupt.
type VIM struct {
	lock   sync.Mutex
	core   *Controller
	guest  *devices.GuestLog
	ram    *VIMRAM
	wake   [VIM_WORDS]uint32
	capevt uint32
	// chanMap[c] is the request feeding channel c.
	chanMap [VIM_CHANNELS]uint8
	level   [VIM_REQUESTS]bool
}

func NewVIM(opts Options) (*VIM, error) {
	core, err := NewController(Config{
		Name:       "VIM",
		Lines:      VIM_CHANNELS,
		Domains:    2,
		StackDepth: 1,
		AutoEOI:    true,
		Logger:     opts.Logger,
		Debug:      opts.Debug,
	})
	if err != nil {
		return nil, err
	}
	v := &VIM{
		core:  core,
		guest: devices.NewGuestLog("VIM", opts.Logger),
		ram:   &VIMRAM{},
	}
	v.reset()
	return v, nil
}

func (v *VIM) Name() string { return "VIM" }
func (v *VIM) Size() uint64 { return VIM_SIZE }

// RAM returns the vector table the IRQVECREG/FIQVECREG reads consult. It is
// mapped separately on the bus.
func (v *VIM) RAM() *VIMRAM { return v.ram }

func (v *VIM) Reset() {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.reset()
}

func (v *VIM) reset() {
	v.core.Reset()
	for c := 0; c < VIM_CHANNELS; c++ {
		v.core.SetPriority(c, 1)
		v.core.SetVector(c, uint32(c+1))
		v.chanMap[c] = uint8(c)
	}
	for c := 0; c < VIM_FIXED_CHANNELS; c++ {
		v.core.SetDomain(c, DomainFIQ)
		v.core.SetEnabled(c, true)
	}
	v.wake = [VIM_WORDS]uint32{}
	v.capevt = 0
	v.level = [VIM_REQUESTS]bool{}
}

func (v *VIM) Connect(d Domain, out OutputLine) error {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.core.Connect(d, out)
}

// Input returns request n.
func (v *VIM) Input(n int) (devices.InterruptLine, error) {
	if n < 0 || n >= VIM_REQUESTS {
		return nil, fmt.Errorf("%w: VIM has no request %d", ErrConfig, n)
	}
	return pin{n: n, set: v.setRequest}, nil
}

func (v *VIM) setRequest(n int, level bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.level[n] = level
	for c := range v.chanMap {
		if int(v.chanMap[c]) == n {
			v.core.SetLevel(c, level)
		}
	}
}

func (v *VIM) Acknowledge(d Domain) (uint32, bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.core.Acknowledge(d)
}

func (v *VIM) EndOfInterrupt(d Domain) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.core.EndOfInterrupt(d)
}

func (v *VIM) Inspect(fn func(c *Controller)) {
	v.lock.Lock()
	defer v.lock.Unlock()
	fn(v.core)
}

func (v *VIM) GuestErrors() uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.guest.Count()
}

// bits collects one 32-channel word of a per-line flag.
func (v *VIM) bits(word int, get func(l *Line) bool) uint32 {
	var out uint32
	for b := 0; b < 32; b++ {
		if get(v.core.line(word*32 + b)) {
			out |= 1 << b
		}
	}
	return out
}

func (v *VIM) Read(offset uint64, size uint8) uint64 {
	v.lock.Lock()
	defer v.lock.Unlock()
	if !v.guest.Word(offset, size) {
		return 0
	}
	word := int(offset&0xF) / 4
	switch {
	case offset == VIM_IRQINDEX, offset == VIM_FIQINDEX:
		d := DomainIRQ
		if offset == VIM_FIQINDEX {
			d = DomainFIQ
		}
		idx, _ := v.core.Acknowledge(d)
		return uint64(idx)
	case offset == VIM_IRQVECREG, offset == VIM_FIQVECREG:
		d := DomainIRQ
		if offset == VIM_FIQVECREG {
			d = DomainFIQ
		}
		idx, _ := v.core.Acknowledge(d)
		return uint64(v.ram.entry(int(idx)))
	case offset == VIM_CAPEVT:
		return uint64(v.capevt)
	case offset >= VIM_CHANCTRL0 && offset <= VIM_CHANCTRL_LAST:
		n := int(offset-VIM_CHANCTRL0) / 4
		var m [4]uint8
		copy(m[:], v.chanMap[4*n:4*n+4])
		return uint64(EncodeChanCtrl(m))
	case word >= VIM_WORDS:
		// 0x1C, 0x2C, ... are holes.
	case offset&^0xF == VIM_FIRQPR0:
		return uint64(v.bits(word, func(l *Line) bool { return l.Domain == DomainFIQ }))
	case offset&^0xF == VIM_INTREQ0:
		return uint64(v.bits(word, func(l *Line) bool { return l.Pending }))
	case offset&^0xF == VIM_REQENASET0, offset&^0xF == VIM_REQENACLR0:
		return uint64(v.bits(word, func(l *Line) bool { return l.Enabled }))
	case offset&^0xF == VIM_WAKEENASET0, offset&^0xF == VIM_WAKEENACLR0:
		return uint64(v.wake[word])
	}
	v.guest.BadOffset("read", offset)
	return 0
}

func (v *VIM) Write(offset uint64, size uint8, value uint64) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if !v.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	word := int(offset&0xF) / 4
	switch {
	case offset == VIM_IRQINDEX, offset == VIM_FIQINDEX,
		offset == VIM_IRQVECREG, offset == VIM_FIQVECREG:
		v.guest.ReadOnly("index/vector", offset, value)
		return
	case offset == VIM_CAPEVT:
		v.capevt = val & VIM_CAPEVT_MASK
		return
	case offset >= VIM_CHANCTRL0 && offset <= VIM_CHANCTRL_LAST:
		v.writeChanCtrl(int(offset-VIM_CHANCTRL0)/4, val)
		return
	case word >= VIM_WORDS:
	case offset&^0xF == VIM_FIRQPR0:
		for b := 0; b < 32; b++ {
			c := word*32 + b
			if c < VIM_FIXED_CHANNELS {
				continue
			}
			d := DomainIRQ
			if val&(1<<b) != 0 {
				d = DomainFIQ
			}
			v.core.SetDomain(c, d)
		}
		return
	case offset&^0xF == VIM_INTREQ0:
		v.eachBit(word, val, func(c int) {
			if v.core.line(c).Trigger == TriggerEdge {
				v.core.ClearPending(c)
			}
		})
		return
	case offset&^0xF == VIM_REQENASET0:
		v.eachBit(word, val, func(c int) { v.core.SetEnabled(c, true) })
		return
	case offset&^0xF == VIM_REQENACLR0:
		v.eachBit(word, val, func(c int) {
			if c >= VIM_FIXED_CHANNELS {
				v.core.SetEnabled(c, false)
			}
		})
		return
	case offset&^0xF == VIM_WAKEENASET0:
		v.wake[word] |= val
		return
	case offset&^0xF == VIM_WAKEENACLR0:
		v.wake[word] &^= val
		return
	}
	v.guest.BadOffset("write", offset)
}

func (v *VIM) eachBit(word int, val uint32, fn func(c int)) {
	for b := 0; b < 32; b++ {
		if val&(1<<b) != 0 {
			fn(word*32 + b)
		}
	}
}

// writeChanCtrl remaps four channels. Channel 0 always follows request 0.
// A remapped channel takes over the current level of its new request.
func (v *VIM) writeChanCtrl(n int, val uint32) {
	m := DecodeChanCtrl(val)
	if n == 0 {
		m[0] = 0
	}
	for i, req := range m {
		c := 4*n + i
		if v.chanMap[c] == req {
			continue
		}
		v.chanMap[c] = req
		level := int(req) < VIM_REQUESTS && v.level[req]
		v.core.SetLevel(c, level)
	}
}

type vimState struct {
	Core    Snapshot               `json:"core"`
	Wake    [VIM_WORDS]uint32      `json:"wake"`
	CapEvt  uint32                 `json:"capevt"`
	ChanMap [VIM_CHANNELS]uint8    `json:"chanmap"`
	Level   [VIM_REQUESTS]bool     `json:"level"`
	RAM     [VIMRAM_ENTRIES]uint32 `json:"ram"`
}

func (v *VIM) SaveState() ([]byte, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	return json.Marshal(vimState{
		Core:    v.core.Snapshot(),
		Wake:    v.wake,
		CapEvt:  v.capevt,
		ChanMap: v.chanMap,
		Level:   v.level,
		RAM:     v.ram.snapshot(),
	})
}

func (v *VIM) LoadState(data []byte) error {
	var s vimState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("VIM: decode state: %w", err)
	}
	v.lock.Lock()
	defer v.lock.Unlock()
	if err := v.core.Restore(s.Core); err != nil {
		return err
	}
	v.wake, v.capevt, v.chanMap, v.level = s.Wake, s.CapEvt, s.ChanMap, s.Level
	v.ram.restore(s.RAM)
	return nil
}

// VIMRAM is the 97-entry interrupt vector table. Entry i holds the handler
// address for index i; entry 0 is the phantom vector.
type VIMRAM struct {
	lock    sync.Mutex
	entries [VIMRAM_ENTRIES]uint32
}

func (r *VIMRAM) Name() string { return "VIMRAM" }
func (r *VIMRAM) Size() uint64 { return VIMRAM_SIZE }

func (r *VIMRAM) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries = [VIMRAM_ENTRIES]uint32{}
}

func (r *VIMRAM) Read(offset uint64, size uint8) uint64 {
	if size != 4 || offset&3 != 0 || offset >= VIMRAM_SIZE {
		return 0
	}
	return uint64(r.entry(int(offset / 4)))
}

func (r *VIMRAM) Write(offset uint64, size uint8, value uint64) {
	if size != 4 || offset&3 != 0 || offset >= VIMRAM_SIZE {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries[offset/4] = uint32(value)
}

// entry returns vector table slot i; an index past the table reads as the
// phantom vector.
func (r *VIMRAM) entry(i int) uint32 {
	r.lock.Lock()
	defer r.lock.Unlock()
	if i < 0 || i >= VIMRAM_ENTRIES {
		i = 0
	}
	return r.entries[i]
}

func (r *VIMRAM) snapshot() [VIMRAM_ENTRIES]uint32 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.entries
}

func (r *VIMRAM) restore(e [VIMRAM_ENTRIES]uint32) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries = e
}
