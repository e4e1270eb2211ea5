package devices

import (
	"io"
	"log"
	"sync"
)

// SCIDevice implements the TMS570 serial communication interface in SCI
// (UART) mode. Transmission completes instantly; received bytes come from
// the host through the HostPort methods. Two interrupt lines carry the
// sources assigned to level 0 and level 1 by SETINTLVL.
type SCIDevice struct {
	lock   sync.Mutex
	guest  *GuestLog
	logger *log.Logger
	output io.Writer
	irqs   [2]InterruptLine
	levels [2]bool

	gcr0, gcr1  uint32
	intena      uint32
	intlvl      uint32
	flr         uint32
	vect        [2]uint32
	format, brs uint32
	rd, td      uint32
	pio         [SCI_PIO_REGS]uint32
	iodftctrl   uint32
}

// NewSCIDevice creates an SCI driving irq0 (level 0) and irq1 (level 1).
func NewSCIDevice(output io.Writer, irq0, irq1 InterruptLine, logger *log.Logger) *SCIDevice {
	if logger == nil {
		logger = log.Default()
	}
	s := &SCIDevice{
		guest:  NewGuestLog("SCIDevice", logger),
		logger: logger,
		output: output,
		irqs:   [2]InterruptLine{irq0, irq1},
	}
	s.reset()
	return s
}

func (s *SCIDevice) Name() string { return "SCI" }
func (s *SCIDevice) Size() uint64 { return SCI_SIZE }

func (s *SCIDevice) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reset()
}

func (s *SCIDevice) reset() {
	s.gcr0 = SCI_GCR0_RESET
	s.gcr1 = 0
	s.intena, s.intlvl = 0, 0
	s.flr = SCIFLR_TX_RDY | SCIFLR_TX_EMPTY
	s.vect = [2]uint32{}
	s.format, s.brs, s.rd, s.td = 0, 0, 0, 0
	s.pio = [SCI_PIO_REGS]uint32{}
	s.iodftctrl = 0
	s.update()
}

func (s *SCIDevice) GuestErrors() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.guest.Count()
}

func (s *SCIDevice) SetOutput(w io.Writer) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.output = w
}

func (s *SCIDevice) ready() bool { return s.gcr1&SCI_GCR1_SWNRST != 0 }

func (s *SCIDevice) CanReceive() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.ready() || s.gcr1&SCI_GCR1_RXENA == 0 || s.flr&SCIFLR_RX_RDY != 0 {
		return 0
	}
	return 1
}

func (s *SCIDevice) Receive(b byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.receive(b)
}

func (s *SCIDevice) receive(b byte) {
	if !s.ready() || s.gcr1&SCI_GCR1_RXENA == 0 {
		return
	}
	if s.flr&SCIFLR_RX_RDY != 0 {
		s.flr |= SCIFLR_OE
	}
	s.rd = uint32(b)
	s.flr |= SCIFLR_RX_RDY
	s.update()
}

func (s *SCIDevice) transmit(b byte) {
	if !s.ready() || s.gcr1&SCI_GCR1_TXENA == 0 {
		s.guest.Printf("SCITD write 0x%x with transmitter disabled", b)
		return
	}
	if s.gcr1&SCI_GCR1_LOOP != 0 {
		s.receive(b)
	} else if s.output != nil {
		if _, err := s.output.Write([]byte{b}); err != nil {
			s.logger.Printf("SCIDevice: Error writing to output: %v", err)
		}
	}
	s.flr |= SCIFLR_TX_RDY | SCIFLR_TX_EMPTY
}

// pending returns the enabled active sources routed to level n.
func (s *SCIDevice) pending(n int) uint32 {
	p := s.flr & s.intena & SCI_INT_MASK
	if n == 0 {
		return p &^ s.intlvl
	}
	return p & s.intlvl
}

func (s *SCIDevice) update() {
	for n := range s.irqs {
		p := s.pending(n)
		s.vect[n] = 0
		for _, v := range sciVectors {
			if p&v.flag != 0 {
				s.vect[n] = v.offset
				break
			}
		}
		level := p != 0
		if level == s.levels[n] {
			continue
		}
		s.levels[n] = level
		if s.irqs[n] != nil {
			s.irqs[n].SetLevel(level)
		}
	}
}

// readVector reports the highest priority source on level n. Reporting an
// error or wakeup source clears its flag.
func (s *SCIDevice) readVector(n int) uint32 {
	off := s.vect[n]
	for _, v := range sciVectors {
		if v.offset == off && v.flag&SCI_VECTOR_CLEARS != 0 {
			s.flr &^= v.flag
			s.update()
			break
		}
	}
	return off
}

func (s *SCIDevice) Read(offset uint64, size uint8) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.guest.Word(offset, size) {
		return 0
	}
	if offset >= SCI_PIO0 && offset < SCI_PIO_END {
		return uint64(s.pio[(offset-SCI_PIO0)/4])
	}
	switch offset {
	case SCI_GCR0:
		return uint64(s.gcr0)
	case SCI_GCR1:
		return uint64(s.gcr1)
	case SCI_SETINT, SCI_CLEARINT:
		return uint64(s.intena)
	case SCI_SETINTLVL, SCI_CLEARINTLVL:
		return uint64(s.intlvl)
	case SCI_FLR:
		return uint64(s.flr)
	case SCI_INTVECT0:
		return uint64(s.readVector(0))
	case SCI_INTVECT1:
		return uint64(s.readVector(1))
	case SCI_FORMAT:
		return uint64(s.format)
	case SCI_BRS:
		return uint64(s.brs)
	case SCI_ED:
		return uint64(s.rd)
	case SCI_RD:
		s.flr &^= SCIFLR_RX_RDY
		s.update()
		return uint64(s.rd)
	case SCI_TD:
		return uint64(s.td)
	case SCI_IODFTCTRL:
		return uint64(s.iodftctrl)
	}
	s.guest.BadOffset("read", offset)
	return 0
}

func (s *SCIDevice) Write(offset uint64, size uint8, value uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	if offset == SCI_GCR0 {
		s.gcr0 = val & SCI_GCR0_RESET
		if s.gcr0 == 0 {
			s.reset()
			s.gcr0 = 0
		}
		return
	}
	if s.gcr0&SCI_GCR0_RESET == 0 {
		s.guest.Printf("write to offset 0x%x while module is held in reset", offset)
		return
	}
	if offset >= SCI_PIO0 && offset < SCI_PIO_END {
		s.pio[(offset-SCI_PIO0)/4] = val
		return
	}
	switch offset {
	case SCI_GCR1:
		if val&SCI_GCR1_SWNRST == 0 {
			s.flr = SCIFLR_TX_RDY | SCIFLR_TX_EMPTY
		}
		s.gcr1 = val
	case SCI_SETINT:
		s.intena |= val
	case SCI_CLEARINT:
		s.intena &^= val
	case SCI_SETINTLVL:
		s.intlvl |= val
	case SCI_CLEARINTLVL:
		s.intlvl &^= val
	case SCI_FLR:
		s.flr &^= val & (SCI_INT_MASK | SCIFLR_WAKEUP)
	case SCI_INTVECT0, SCI_INTVECT1, SCI_ED, SCI_RD:
		s.guest.ReadOnly("SCI", offset, value)
		return
	case SCI_FORMAT:
		s.format = val
	case SCI_BRS:
		s.brs = val
	case SCI_TD:
		s.td = val & 0xFF
		s.transmit(byte(val))
	case SCI_IODFTCTRL:
		s.iodftctrl = val
	default:
		s.guest.BadOffset("write", offset)
		return
	}
	s.update()
}
