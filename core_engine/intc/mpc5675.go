package intc

import (
	"encoding/json"
	"fmt"
	"sync"

	"example.com/mcu-vpic/core_engine/devices"
)

// INTC is the MPC5675 interrupt controller. Every source is level sensitive
// and enabled; a source with priority 0 can never be delivered. Sources 0-7
// are software settable, the rest are peripheral inputs. In software vector
// mode the IACKR read acknowledges; in hardware vector mode the CPU does so
// through Acknowledge and IACKR reads are plain.
type INTC struct {
	lock  sync.Mutex
	core  *Controller
	guest *devices.GuestLog
	bcr   uint32
	iackr uint32
}

func NewINTC(opts Options) (*INTC, error) {
	core, err := NewController(Config{
		Name:       "INTC",
		Lines:      INTC_SOURCES,
		Domains:    1,
		StackDepth: INTC_DEPTH,
		AckLockout: true,
		Logger:     opts.Logger,
		Debug:      opts.Debug,
	})
	if err != nil {
		return nil, err
	}
	n := &INTC{core: core, guest: devices.NewGuestLog("INTC", opts.Logger)}
	n.reset()
	return n, nil
}

func (n *INTC) Name() string { return "INTC" }
func (n *INTC) Size() uint64 { return INTC_SIZE }

func (n *INTC) Reset() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.reset()
}

func (n *INTC) reset() {
	n.core.Reset()
	for id := 0; id < INTC_SOURCES; id++ {
		n.core.SetTrigger(id, TriggerLevel)
		if id < INTC_SOFTWARE {
			n.core.SetClass(id, ClassSoftware)
		}
		n.core.SetEnabled(id, true)
	}
	n.core.SetCurrentPriority(DomainIRQ, INTC_CPR_RESET)
	n.bcr = 0
	n.iackr = 0
}

func (n *INTC) vtes() bool { return n.bcr&INTC_BCR_VTES != 0 }

func (n *INTC) Connect(d Domain, out OutputLine) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.core.Connect(d, out)
}

// Input returns peripheral source id. Software sources are refused.
func (n *INTC) Input(id int) (devices.InterruptLine, error) {
	if id < INTC_SOFTWARE || id >= INTC_SOURCES {
		return nil, fmt.Errorf("%w: INTC source %d is not a peripheral input", ErrConfig, id)
	}
	return pin{n: id, set: n.setInput}, nil
}

func (n *INTC) setInput(id int, level bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.core.SetLevel(id, level)
}

// Acknowledge is the hardware vector mode acknowledge. The returned vector is
// the source number; IACKR is updated as well.
func (n *INTC) Acknowledge(d Domain) (uint32, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.acknowledge()
}

func (n *INTC) acknowledge() (uint32, bool) {
	v, ok := n.core.Acknowledge(DomainIRQ)
	n.iackr = EncodeIACKR(n.iackr, uint16(v), n.vtes())
	return v, ok
}

func (n *INTC) EndOfInterrupt(d Domain) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.core.EndOfInterrupt(DomainIRQ)
}

func (n *INTC) Inspect(fn func(c *Controller)) {
	n.lock.Lock()
	defer n.lock.Unlock()
	fn(n.core)
}

func (n *INTC) GuestErrors() uint64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.guest.Count()
}

// byteRegister reports whether offset falls in the byte-addressed SSCIR or
// PSR arrays.
func byteRegister(offset uint64) bool {
	return offset >= INTC_SSCIR0 && offset < INTC_SSCIR0+INTC_SOFTWARE ||
		offset >= INTC_PSR0 && offset < INTC_PSR_END
}

func (n *INTC) readByte(offset uint64) uint8 {
	switch {
	case offset >= INTC_SSCIR0 && offset < INTC_SSCIR0+INTC_SOFTWARE:
		if n.core.line(int(offset - INTC_SSCIR0)).Level {
			return SSCIR_CLR
		}
	case offset >= INTC_PSR0 && offset < INTC_PSR_END:
		return n.core.line(int(offset - INTC_PSR0)).Priority
	}
	return 0
}

func (n *INTC) writeByte(offset uint64, b uint8) {
	switch {
	case offset >= INTC_SSCIR0 && offset < INTC_SSCIR0+INTC_SOFTWARE:
		id := int(offset - INTC_SSCIR0)
		if b&SSCIR_CLR != 0 {
			n.core.SetLevel(id, false)
		}
		if b&SSCIR_SET != 0 {
			n.core.SetLevel(id, true)
		}
	case offset >= INTC_PSR0 && offset < INTC_PSR_END:
		n.core.SetPriority(int(offset-INTC_PSR0), b&INTC_CPR_MASK)
	}
}

// readWord packs four consecutive SSCIR or PSR sources. Sources past the
// last one read as zero.
func (n *INTC) readWord(offset uint64) uint32 {
	if offset < INTC_PSR0 {
		first := int(offset - INTC_SSCIR0)
		var flags [4]bool
		for i := range flags {
			flags[i] = n.core.line(first + i).Level
		}
		return EncodeSSCIR(flags)
	}
	first := int(offset - INTC_PSR0)
	var p [4]uint8
	for i := range p {
		if first+i < INTC_SOURCES {
			p[i] = n.core.line(first + i).Priority
		}
	}
	return EncodePSR(p)
}

func (n *INTC) writeWord(offset uint64, val uint32) {
	if offset < INTC_PSR0 {
		first := int(offset - INTC_SSCIR0)
		set, clr := DecodeSSCIRWrite(val)
		for i := range set {
			if clr[i] {
				n.core.SetLevel(first+i, false)
			}
			if set[i] {
				n.core.SetLevel(first+i, true)
			}
		}
		return
	}
	first := int(offset - INTC_PSR0)
	for i, p := range DecodePSR(val) {
		if first+i < INTC_SOURCES {
			n.core.SetPriority(first+i, p)
		}
	}
}

func (n *INTC) Read(offset uint64, size uint8) uint64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	if byteRegister(offset) {
		if size != 1 && size != 2 && size != 4 || offset%uint64(size) != 0 {
			n.guest.Printf("unsupported %d-byte access at offset 0x%x", size, offset)
			return 0
		}
		if size == 4 {
			return uint64(n.readWord(offset))
		}
		var v uint64
		for k := uint64(0); k < uint64(size); k++ {
			v = v<<8 | uint64(n.readByte(offset+k))
		}
		return v
	}
	if !n.guest.Word(offset, size) {
		return 0
	}
	switch offset {
	case INTC_BCR:
		return uint64(n.bcr)
	case INTC_CPR:
		return uint64(n.core.CurrentPriority(DomainIRQ))
	case INTC_IACKR:
		if n.bcr&INTC_BCR_HVEN == 0 {
			n.acknowledge()
		}
		return uint64(n.iackr)
	case INTC_EOIR:
		return 0
	}
	n.guest.BadOffset("read", offset)
	return 0
}

func (n *INTC) Write(offset uint64, size uint8, value uint64) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if byteRegister(offset) {
		if size != 1 && size != 2 && size != 4 || offset%uint64(size) != 0 {
			n.guest.Printf("unsupported %d-byte access at offset 0x%x", size, offset)
			return
		}
		if size == 4 {
			n.writeWord(offset, uint32(value))
			return
		}
		for k := uint64(0); k < uint64(size); k++ {
			n.writeByte(offset+k, uint8(value>>(8*(uint64(size)-1-k))))
		}
		return
	}
	if !n.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	switch offset {
	case INTC_BCR:
		n.bcr = val & INTC_BCR_MASK
	case INTC_CPR:
		n.core.SetCurrentPriority(DomainIRQ, uint8(val)&INTC_CPR_MASK)
	case INTC_IACKR:
		vtba, _ := DecodeIACKR(val, n.vtes())
		_, vec := DecodeIACKR(n.iackr, n.vtes())
		n.iackr = EncodeIACKR(vtba, vec, n.vtes())
	case INTC_EOIR:
		n.core.EndOfInterrupt(DomainIRQ)
	default:
		n.guest.BadOffset("write", offset)
	}
}

type intcState struct {
	Core  Snapshot `json:"core"`
	BCR   uint32   `json:"bcr"`
	IACKR uint32   `json:"iackr"`
}

func (n *INTC) SaveState() ([]byte, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return json.Marshal(intcState{Core: n.core.Snapshot(), BCR: n.bcr, IACKR: n.iackr})
}

func (n *INTC) LoadState(data []byte) error {
	var s intcState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("INTC: decode state: %w", err)
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if err := n.core.Restore(s.Core); err != nil {
		return err
	}
	n.bcr, n.iackr = s.BCR, s.IACKR
	return nil
}
