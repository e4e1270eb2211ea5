package devices

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// IIR code for a receive FIFO holding data below the trigger level. Time is
// not modelled, so the character timeout is reported at once.
const IIR_CTI byte = 0x0C

// SerialPortDevice implements one 16550 channel with a 16-byte receive FIFO.
// Transmission is instant; the THR empty interrupt is raised after every
// write and cleared by reading IIR or writing THR again.
type SerialPortDevice struct {
	lock   sync.Mutex
	name   string
	guest  *GuestLog
	logger *log.Logger
	output io.Writer
	irq    InterruptLine
	level  bool

	fifo      [UART_FIFO_SIZE]byte
	readPos   int
	readCount int
	trigger   int
	fifoOn    bool

	dll, dlm byte
	ier      byte
	fcr      byte
	lcr      byte
	mcr      byte
	lsr      byte
	scr      byte
	thri     bool // THR empty interrupt pending
}

// NewSerialPortDevice creates and initializes a single 16550 channel.
func NewSerialPortDevice(name string, writer io.Writer, irq InterruptLine, logger *log.Logger) *SerialPortDevice {
	if logger == nil {
		logger = log.Default()
	}
	s := &SerialPortDevice{
		name:   name,
		guest:  NewGuestLog(name, logger),
		logger: logger,
		output: writer,
		irq:    irq,
	}
	s.reset()
	return s
}

func (s *SerialPortDevice) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reset()
}

func (s *SerialPortDevice) reset() {
	s.readPos, s.readCount = 0, 0
	s.trigger = 1
	s.fifoOn = false
	s.dll, s.dlm, s.ier, s.fcr, s.lcr, s.mcr, s.scr = 0, 0, 0, 0, 0, 0, 0
	s.lsr = LSR_THRE | LSR_TEMT
	s.thri = false
	s.update()
}

func (s *SerialPortDevice) GuestErrors() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.guest.Count()
}

func (s *SerialPortDevice) SetOutput(w io.Writer) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.output = w
}

func (s *SerialPortDevice) capacity() int {
	if s.fifoOn {
		return UART_FIFO_SIZE
	}
	return 1
}

func (s *SerialPortDevice) CanReceive() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.capacity() - s.readCount
}

func (s *SerialPortDevice) Receive(b byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.receive(b)
}

// receive queues b, setting OE and dropping it when the FIFO is full.
func (s *SerialPortDevice) receive(b byte) {
	if s.readCount == s.capacity() {
		s.lsr |= LSR_OE
		s.update()
		return
	}
	s.fifo[(s.readPos+s.readCount)%UART_FIFO_SIZE] = b
	s.readCount++
	s.lsr |= LSR_DR
	s.update()
}

func (s *SerialPortDevice) transmit(b byte) {
	if s.mcr&MCR_LOOP != 0 {
		s.receive(b)
	} else if s.output != nil {
		if _, err := s.output.Write([]byte{b}); err != nil {
			s.logger.Printf("%s: Error writing to output: %v", s.name, err)
		}
	}
	s.lsr |= LSR_THRE | LSR_TEMT
	s.thri = true
}

// interrupt returns the IIR code of the highest priority pending source.
func (s *SerialPortDevice) interrupt() byte {
	switch {
	case s.ier&IER_RX_LINE_STATUS != 0 && s.lsr&LSR_ERRS != 0:
		return IIR_RLS
	case s.ier&IER_RX_DATA_AVAILABLE != 0 && s.readCount > 0:
		if s.fifoOn && s.readCount < s.trigger {
			return IIR_CTI
		}
		return IIR_RDA
	case s.ier&IER_THRE_ENABLE != 0 && s.thri:
		return IIR_THRE
	}
	return IIR_NO_INT_PENDING
}

func (s *SerialPortDevice) update() {
	level := s.interrupt() != IIR_NO_INT_PENDING
	if level == s.level {
		return
	}
	s.level = level
	if s.irq != nil {
		s.irq.SetLevel(level)
	}
}

func (s *SerialPortDevice) msr() byte {
	if s.mcr&MCR_LOOP == 0 {
		return 0
	}
	// Loopback ties the modem outputs to the inputs.
	return (s.mcr&0x0C)<<4 | (s.mcr&0x01)<<5 | (s.mcr&0x02)<<3
}

func (s *SerialPortDevice) readReg(reg uint64) byte {
	dlab := s.lcr&LCR_DLAB != 0
	switch reg {
	case RHR_THR_DLL:
		if dlab {
			return s.dll
		}
		if s.readCount == 0 {
			return 0
		}
		b := s.fifo[s.readPos]
		s.readPos = (s.readPos + 1) % UART_FIFO_SIZE
		s.readCount--
		if s.readCount == 0 {
			s.lsr &^= LSR_DR
		}
		s.update()
		return b
	case IER_DLH:
		if dlab {
			return s.dlm
		}
		return s.ier
	case IIR_FCR:
		id := s.interrupt()
		if id == IIR_THRE {
			s.thri = false
			s.update()
		}
		if s.fifoOn {
			id |= IIR_FIFO_ENABLED
		}
		return id
	case LCR:
		return s.lcr
	case MCR:
		return s.mcr
	case LSR:
		v := s.lsr
		s.lsr &^= LSR_ERRS | LSR_ERF
		s.update()
		return v
	case MSR:
		return s.msr()
	case SCR:
		return s.scr
	case DSR:
		var v byte
		if s.readCount == 0 {
			v |= DSR_RXRDY
		}
		return v
	}
	s.guest.BadOffset("read", reg)
	return 0xFF
}

func (s *SerialPortDevice) writeReg(reg uint64, val byte) {
	dlab := s.lcr&LCR_DLAB != 0
	switch reg {
	case RHR_THR_DLL:
		if dlab {
			s.dll = val
			return
		}
		s.transmit(val)
	case IER_DLH:
		if dlab {
			s.dlm = val
			return
		}
		if val&IER_THRE_ENABLE != 0 && s.ier&IER_THRE_ENABLE == 0 && s.lsr&LSR_THRE != 0 {
			s.thri = true
		}
		s.ier = val & IER_MASK
	case IIR_FCR:
		on := val&FCR_ENABLE != 0
		if on != s.fifoOn || val&FCR_RX_RESET != 0 {
			s.readPos, s.readCount = 0, 0
			s.lsr &^= LSR_DR
		}
		s.fifoOn = on
		s.fcr = val
		s.trigger = uartTriggers[(val&FCR_TRIGGER)>>6]
	case LCR:
		s.lcr = val
	case MCR:
		s.mcr = val & 0x1F
	case SCR:
		s.scr = val
	case LSR, MSR, DSR:
		s.guest.ReadOnly("status", reg, uint64(val))
		return
	default:
		s.guest.BadOffset("write", reg)
		return
	}
	s.update()
}

// PC16552DDevice is the dual UART on the ppc755 board: two SerialPortDevice
// channels in one register window, each with its own interrupt output.
type PC16552DDevice struct {
	channels [UART_CHANNELS]*SerialPortDevice
}

func NewPC16552DDevice(outputs [UART_CHANNELS]io.Writer, irqs [UART_CHANNELS]InterruptLine, logger *log.Logger) *PC16552DDevice {
	d := &PC16552DDevice{}
	for i := range d.channels {
		d.channels[i] = NewSerialPortDevice(fmt.Sprintf("PC16552D.%d", i), outputs[i], irqs[i], logger)
	}
	return d
}

func (d *PC16552DDevice) Name() string { return "PC16552D" }
func (d *PC16552DDevice) Size() uint64 { return UART_SIZE }

func (d *PC16552DDevice) Reset() {
	for _, ch := range d.channels {
		ch.Reset()
	}
}

// Channel returns channel n (0 or 1).
func (d *PC16552DDevice) Channel(n int) *SerialPortDevice { return d.channels[n] }

func (d *PC16552DDevice) channel(offset uint64) (*SerialPortDevice, uint64) {
	return d.channels[offset/UART_CHANNEL_STRIDE%UART_CHANNELS], offset % UART_CHANNEL_STRIDE
}

func (d *PC16552DDevice) Read(offset uint64, size uint8) uint64 {
	ch, reg := d.channel(offset)
	ch.lock.Lock()
	defer ch.lock.Unlock()
	if size != 1 {
		ch.guest.Printf("unsupported %d-byte read at offset 0x%x", size, offset)
		return 0xFF
	}
	return uint64(ch.readReg(reg))
}

func (d *PC16552DDevice) Write(offset uint64, size uint8, value uint64) {
	ch, reg := d.channel(offset)
	ch.lock.Lock()
	defer ch.lock.Unlock()
	if size != 1 {
		ch.guest.Printf("unsupported %d-byte write at offset 0x%x", size, offset)
		return
	}
	ch.writeReg(reg, byte(value))
}
