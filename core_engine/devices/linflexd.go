package devices

import (
	"io"
	"log"
	"sync"
)

// LINFlexDDevice implements an MPC5675 LINFlexD controller in UART mode.
// The LIN protocol engine is not modelled; its registers hold their values.
// Lines are receive (DRF), transmit (DTF) and error (BOF/FEF), each gated by
// its LINIER enable.
type LINFlexDDevice struct {
	lock   sync.Mutex
	guest  *GuestLog
	logger *log.Logger
	output io.Writer
	irqs   [LIN_LINES]InterruptLine
	levels [LIN_LINES]bool

	lincr1, linier, linsr, linesr uint32
	uartcr, uartsr                uint32
	lintcsr, linocr, lintocr      uint32
	linfbrr, linibrr, lincfr      uint32
	lincr2, bidr, bdrl, bdrm      uint32
	ifer, ifmi, ifmr              uint32
	ifcr                          [LIN_IFCRS]uint32
	gcr, uartpto, uartcto         uint32
	dmatxe, dmarxe                uint32
}

func NewLINFlexDDevice(output io.Writer, irqs [LIN_LINES]InterruptLine, logger *log.Logger) *LINFlexDDevice {
	if logger == nil {
		logger = log.Default()
	}
	l := &LINFlexDDevice{
		guest:  NewGuestLog("LINFlexDDevice", logger),
		logger: logger,
		output: output,
		irqs:   irqs,
	}
	l.reset()
	return l
}

func (l *LINFlexDDevice) Name() string { return "LINFlexD" }
func (l *LINFlexDDevice) Size() uint64 { return LIN_SIZE }

func (l *LINFlexDDevice) Reset() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.reset()
}

func (l *LINFlexDDevice) reset() {
	l.lincr1, l.linier, l.linsr, l.linesr = LINCR1_RESET, 0, LINSR_RESET, 0
	l.uartcr, l.uartsr = 0, 0
	l.lintcsr, l.linocr, l.lintocr = LINTCSR_RESET, LINOCR_RESET, LINTOCR_RESET
	l.linfbrr, l.linibrr, l.lincfr = 0, 0, 0
	l.lincr2, l.bidr, l.bdrl, l.bdrm = LINCR2_RESET, 0, 0, 0
	l.ifer, l.ifmi, l.ifmr = 0, 0, 0
	l.ifcr = [LIN_IFCRS]uint32{}
	l.gcr, l.uartpto, l.uartcto = 0, 0, 0
	l.dmatxe, l.dmarxe = 0, 0
	l.update()
}

func (l *LINFlexDDevice) GuestErrors() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.guest.Count()
}

func (l *LINFlexDDevice) SetOutput(w io.Writer) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.output = w
}

func (l *LINFlexDDevice) initMode() bool {
	return l.lincr1&(LINCR1_INIT|LINCR1_SLEEP) == LINCR1_INIT
}

func (l *LINFlexDDevice) normalMode() bool {
	return l.lincr1&(LINCR1_INIT|LINCR1_SLEEP) == 0
}

func (l *LINFlexDDevice) receiving() bool {
	return l.normalMode() && l.uartcr&(UARTCR_UART|UARTCR_RXEN) == UARTCR_UART|UARTCR_RXEN
}

func (l *LINFlexDDevice) CanReceive() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.receiving() || l.uartsr&UARTSR_DRF != 0 {
		return 0
	}
	return 1
}

// Receive latches one byte into BDRM. A byte arriving while DRF is still set
// overruns the buffer.
func (l *LINFlexDDevice) Receive(b byte) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.receiving() {
		return
	}
	if l.uartsr&UARTSR_DRF != 0 {
		l.uartsr |= UARTSR_BOF
	} else {
		l.bdrm = uint32(b)
		l.uartsr |= UARTSR_DRF
	}
	l.update()
}

func (l *LINFlexDDevice) transmit(b byte) {
	if !l.normalMode() || l.uartcr&(UARTCR_UART|UARTCR_TXEN) != UARTCR_UART|UARTCR_TXEN {
		l.guest.Printf("BDRL write 0x%x with transmitter disabled", b)
		return
	}
	if l.output != nil {
		if _, err := l.output.Write([]byte{b}); err != nil {
			l.logger.Printf("LINFlexDDevice: Error writing to output: %v", err)
		}
	}
	l.uartsr |= UARTSR_DTF
}

func (l *LINFlexDDevice) update() {
	levels := [LIN_LINES]bool{
		LIN_LINE_RX:  l.uartsr&UARTSR_DRF != 0 && l.linier&LINIER_DRIE != 0,
		LIN_LINE_TX:  l.uartsr&UARTSR_DTF != 0 && l.linier&LINIER_DTIE != 0,
		LIN_LINE_ERR: l.uartsr&UARTSR_BOF != 0 && l.linier&LINIER_BOIE != 0 || l.uartsr&UARTSR_FEF != 0 && l.linier&LINIER_FEIE != 0,
	}
	for i, level := range levels {
		if level == l.levels[i] {
			continue
		}
		l.levels[i] = level
		if l.irqs[i] != nil {
			l.irqs[i].SetLevel(level)
		}
	}
}

func (l *LINFlexDDevice) Read(offset uint64, size uint8) uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.guest.Word(offset, size) {
		return 0
	}
	if offset >= LIN_IFCR0 && offset < LIN_IFCR_END {
		return uint64(l.ifcr[(offset-LIN_IFCR0)/4])
	}
	var v uint32
	switch offset {
	case LIN_LINCR1:
		v = l.lincr1
	case LIN_LINIER:
		v = l.linier
	case LIN_LINSR:
		v = l.linsr
	case LIN_LINESR:
		v = l.linesr
	case LIN_UARTCR:
		v = l.uartcr
	case LIN_UARTSR:
		v = l.uartsr
	case LIN_LINTCSR:
		v = l.lintcsr
	case LIN_LINOCR:
		v = l.linocr
	case LIN_LINTOCR:
		v = l.lintocr
	case LIN_LINFBRR:
		v = l.linfbrr
	case LIN_LINIBRR:
		v = l.linibrr
	case LIN_LINCFR:
		v = l.lincfr
	case LIN_LINCR2:
		v = l.lincr2
	case LIN_BIDR:
		v = l.bidr
	case LIN_BDRL:
		v = l.bdrl
	case LIN_BDRM:
		v = l.bdrm
	case LIN_IFER:
		v = l.ifer
	case LIN_IFMI:
		v = l.ifmi
	case LIN_IFMR:
		v = l.ifmr
	case LIN_GCR:
		v = l.gcr
	case LIN_UARTPTO:
		v = l.uartpto
	case LIN_UARTCTO:
		v = l.uartcto
	case LIN_DMATXE:
		v = l.dmatxe
	case LIN_DMARXE:
		v = l.dmarxe
	default:
		l.guest.BadOffset("read", offset)
	}
	return uint64(v)
}

func (l *LINFlexDDevice) Write(offset uint64, size uint8, value uint64) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	if offset >= LIN_IFCR0 && offset < LIN_IFCR_END {
		l.ifcr[(offset-LIN_IFCR0)/4] = val
		return
	}
	initOnly := func(dst *uint32, mask uint32) {
		if !l.initMode() {
			l.guest.Printf("offset 0x%x is writable in init mode only", offset)
			return
		}
		*dst = val & mask
	}
	switch offset {
	case LIN_LINCR1:
		if l.initMode() {
			l.lincr1 = val & 0xFFFF
		} else {
			l.lincr1 = l.lincr1&^(LINCR1_INIT|LINCR1_SLEEP) | val&(LINCR1_INIT|LINCR1_SLEEP)
		}
	case LIN_LINIER:
		l.linier = val & 0xF9FF
	case LIN_LINSR:
		l.linsr &^= val & 0xF2FF
	case LIN_LINESR:
		l.linesr &^= val & 0xFF81
	case LIN_UARTCR:
		keep := UARTCR_INIT_ONLY
		if l.initMode() {
			keep = 0
		}
		l.uartcr = l.uartcr&keep | val&^keep
	case LIN_UARTSR:
		l.uartsr &^= val & UARTSR_W1C
	case LIN_LINTCSR:
		initOnly(&l.lintcsr, 0x700)
	case LIN_LINOCR:
		l.linocr = val & 0xFFFF
	case LIN_LINTOCR:
		l.lintocr = val & 0xF7F
	case LIN_LINFBRR:
		initOnly(&l.linfbrr, 0xF)
	case LIN_LINIBRR:
		initOnly(&l.linibrr, 0xFFFFF)
	case LIN_LINCFR:
		l.lincfr = val & 0xFF
	case LIN_LINCR2:
		l.lincr2 = val
	case LIN_BIDR:
		l.bidr = val
	case LIN_BDRL:
		l.bdrl = val
		l.transmit(byte(val))
	case LIN_BDRM:
		l.guest.ReadOnly("BDRM", offset, value)
	case LIN_IFER:
		l.ifer = val
	case LIN_IFMI:
		l.guest.ReadOnly("IFMI", offset, value)
	case LIN_IFMR:
		l.ifmr = val
	case LIN_GCR:
		initOnly(&l.gcr, 0x3F)
	case LIN_UARTPTO:
		l.uartpto = val & 0xFFF
	case LIN_UARTCTO:
		l.guest.ReadOnly("UARTCTO", offset, value)
	case LIN_DMATXE:
		l.dmatxe = val
	case LIN_DMARXE:
		l.dmarxe = val
	default:
		l.guest.BadOffset("write", offset)
	}
	l.update()
}
