package core_engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"example.com/mcu-vpic/core_engine/devices"
	"example.com/mcu-vpic/core_engine/intc"
	"example.com/mcu-vpic/core_engine/vclock"
)

// Options configures a board.
type Options struct {
	Logger *log.Logger
	// Output receives guest serial output until a port is redirected with
	// SetOutput. nil discards it.
	Output io.Writer
	Debug  bool
}

type guestErrorer interface {
	GuestErrors() uint64
}

// Board is one MCU: a virtual clock, a big-endian bus, an interrupt
// controller, its peripherals and the CPU pins they drive. Every exported
// method takes the board lock, so the model runs single-threaded however it
// is driven.
type Board struct {
	lock   sync.Mutex
	name   string
	clock  *vclock.Clock
	bus    *devices.IOBus
	ctrl   intc.Device
	cpu    *CPU
	serial []devices.HostPort
	logger *log.Logger

	// resetLines are held inputs that a system reset releases.
	resetLines   []devices.InterruptLine
	resetPending bool
	Debug        bool
}

// Boards lists the names NewBoard accepts.
func Boards() []string { return []string{BoardTMS570, BoardMPC5675, BoardPPC755} }

// NewBoard creates and wires the named board.
func NewBoard(name string, opts Options) (*Board, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	b := &Board{
		name:   name,
		clock:  vclock.New(),
		bus:    devices.NewIOBus(binary.BigEndian, opts.Logger),
		cpu:    &CPU{},
		logger: opts.Logger,
		Debug:  opts.Debug,
	}
	b.bus.Debug = opts.Debug

	var err error
	switch name {
	case BoardTMS570:
		err = b.buildTMS570(opts)
	case BoardMPC5675:
		err = b.buildMPC5675(opts)
	case BoardPPC755:
		err = b.buildPPC755(opts)
	default:
		return nil, fmt.Errorf("%w: unknown board %q", intc.ErrConfig, name)
	}
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", name, err)
	}
	if b.Debug {
		b.logger.Printf("Board: %s created with %s", name, b.ctrl.Name())
	}
	return b, nil
}

func (b *Board) controller(k intc.Kind) error {
	ctrl, err := intc.New(k, intc.Options{Logger: b.logger, Clock: b.clock, Debug: b.Debug})
	if err != nil {
		return err
	}
	for d := intc.DomainIRQ; d <= intc.DomainFIQ; d++ {
		if d == intc.DomainFIQ && k != intc.KindVIM {
			break
		}
		if err := ctrl.Connect(d, b.cpu.Pin(d)); err != nil {
			return err
		}
	}
	b.ctrl = ctrl
	return nil
}

func (b *Board) inputs(ns ...int) ([]devices.InterruptLine, error) {
	out := make([]devices.InterruptLine, len(ns))
	for i, n := range ns {
		line, err := b.ctrl.Input(n)
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

func (b *Board) mapDevices(m map[uint64]devices.MMIODevice) error {
	for base, dev := range m {
		if err := b.bus.RegisterDevice(base, dev); err != nil {
			return err
		}
	}
	return nil
}

func (b *Board) buildTMS570(opts Options) error {
	if err := b.controller(intc.KindVIM); err != nil {
		return err
	}
	vim := b.ctrl.(*intc.VIM)
	lines, err := b.inputs(
		TMS570_REQ_RTI_COMP0, TMS570_REQ_RTI_COMP0+1, TMS570_REQ_RTI_COMP0+2, TMS570_REQ_RTI_COMP0+3,
		TMS570_REQ_RTI_OVF0, TMS570_REQ_RTI_OVF1, TMS570_REQ_RTI_TB,
		TMS570_REQ_SCI_LVL0, TMS570_REQ_SCI_LVL1, TMS570_REQ_ESM_HIGH)
	if err != nil {
		return err
	}
	var rtiLines [devices.RTI_LINES]devices.InterruptLine
	copy(rtiLines[:], lines)
	nmi := lines[9]
	b.resetLines = append(b.resetLines, nmi)
	rti := devices.NewRTIDevice(b.clock, 0, rtiLines, func(isNMI bool) {
		if isNMI {
			nmi.SetLevel(true)
			return
		}
		b.requestReset("RTI digital watchdog")
	}, b.logger)
	sci := devices.NewSCIDevice(opts.Output, lines[7], lines[8], b.logger)
	b.serial = []devices.HostPort{sci}
	return b.mapDevices(map[uint64]devices.MMIODevice{
		TMS570_VIM_BASE:    vim,
		TMS570_VIMRAM_BASE: vim.RAM(),
		TMS570_RTI_BASE:    rti,
		TMS570_SCI_BASE:    sci,
	})
}

func (b *Board) buildMPC5675(opts Options) error {
	if err := b.controller(intc.KindINTC); err != nil {
		return err
	}
	var pitLines [devices.PIT_CHANNELS]devices.InterruptLine
	lines, err := b.inputs(mpc5675PITSources[:]...)
	if err != nil {
		return err
	}
	copy(pitLines[:], lines)
	lines, err = b.inputs(MPC5675_SRC_SWT, MPC5675_SRC_LIN0_RX, MPC5675_SRC_LIN0_TX, MPC5675_SRC_LIN0_ERR)
	if err != nil {
		return err
	}
	pit := devices.NewPITDevice(b.clock, 0, pitLines, b.logger)
	swt := devices.NewSWTDevice(b.clock, lines[0], func() { b.requestReset("SWT timeout") }, b.logger)
	lin := devices.NewLINFlexDDevice(opts.Output, [devices.LIN_LINES]devices.InterruptLine{lines[1], lines[2], lines[3]}, b.logger)
	b.serial = []devices.HostPort{lin}
	return b.mapDevices(map[uint64]devices.MMIODevice{
		MPC5675_INTC_BASE:     b.ctrl,
		MPC5675_PIT_BASE:      pit,
		MPC5675_SWT_BASE:      swt,
		MPC5675_LINFLEX0_BASE: lin,
	})
}

func (b *Board) buildPPC755(opts Options) error {
	if err := b.controller(intc.KindEPIC); err != nil {
		return err
	}
	// PI P0 resets the core only.
	b.ctrl.(*intc.EPIC).SetResetHandler(b.cpu.reset)
	lines, err := b.inputs(PPC755_IRQ_UART0, PPC755_IRQ_UART1)
	if err != nil {
		return err
	}
	uart := devices.NewPC16552DDevice(
		[devices.UART_CHANNELS]io.Writer{opts.Output, opts.Output},
		[devices.UART_CHANNELS]devices.InterruptLine{lines[0], lines[1]},
		b.logger)
	b.serial = []devices.HostPort{uart.Channel(0), uart.Channel(1)}
	return b.mapDevices(map[uint64]devices.MMIODevice{
		PPC755_EPIC_BASE: b.ctrl,
		PPC755_UART_BASE: uart,
	})
}

// requestReset is called from inside a device. The reset itself runs when
// the board entry point that triggered it returns.
func (b *Board) requestReset(why string) {
	b.logger.Printf("Board: %s: system reset requested by %s", b.name, why)
	b.resetPending = true
}

func (b *Board) finish() {
	if !b.resetPending {
		return
	}
	b.resetPending = false
	b.reset()
}

func (b *Board) reset() {
	for _, line := range b.resetLines {
		line.SetLevel(false)
	}
	for _, dev := range b.bus.Devices() {
		dev.Reset()
	}
	b.cpu.reset()
	if b.Debug {
		b.logger.Printf("Board: %s reset at %v", b.name, b.clock.Now())
	}
}

// Reset performs a system reset of every device.
func (b *Board) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.resetPending = false
	b.reset()
}

func (b *Board) Name() string                  { return b.name }
func (b *Board) CPU() *CPU                     { return b.cpu }
func (b *Board) Controller() intc.Device       { return b.ctrl }
func (b *Board) SerialPorts() int              { return len(b.serial) }
func (b *Board) Devices() []devices.MMIODevice { return b.bus.Devices() }

func (b *Board) Now() time.Duration {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.clock.Now()
}

// Read performs a guest load.
func (b *Board) Read(addr uint64, size uint8) (uint64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	defer b.finish()
	return b.bus.Read(addr, size)
}

// Write performs a guest store.
func (b *Board) Write(addr uint64, size uint8, value uint64) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	defer b.finish()
	return b.bus.Write(addr, size, value)
}

// HandleMMIO services a CPU access given as a raw big-endian buffer.
func (b *Board) HandleMMIO(physAddr uint64, data []byte, isWrite bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	defer b.finish()
	if b.Debug {
		accessType := "READ"
		if isWrite {
			accessType = "WRITE"
		}
		b.logger.Printf("Board: MMIO %s 0x%X len %d", accessType, physAddr, len(data))
	}
	return b.bus.HandleMMIO(physAddr, data, isWrite)
}

// Advance moves virtual time forward by d, firing every timer that falls
// due, and returns how many callbacks ran.
func (b *Board) Advance(d time.Duration) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	defer b.finish()
	return b.clock.Advance(d)
}

// SetInput drives controller input n directly, as an external pin would.
func (b *Board) SetInput(n int, level bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	line, err := b.ctrl.Input(n)
	if err != nil {
		return err
	}
	line.SetLevel(level)
	return nil
}

// Acknowledge is the CPU taking the interrupt signalled on domain d, as a
// core with hardware vectoring does without a register read.
func (b *Board) Acknowledge(d intc.Domain) (uint32, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.ctrl.Acknowledge(d)
}

func (b *Board) EndOfInterrupt(d intc.Domain) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.ctrl.EndOfInterrupt(d)
}

// Inspect runs fn with the controller state while the board is held.
func (b *Board) Inspect(fn func(c *intc.Controller)) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.ctrl.Inspect(fn)
}

// GuestErrors reports the guest programming errors seen per device.
func (b *Board) GuestErrors() map[string]uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	out := make(map[string]uint64)
	for _, dev := range b.bus.Devices() {
		if g, ok := dev.(guestErrorer); ok {
			out[dev.Name()] = g.GuestErrors()
		}
	}
	return out
}

// Serial returns host port n with every call serialized on the board.
func (b *Board) Serial(n int) (devices.HostPort, error) {
	if n < 0 || n >= len(b.serial) {
		return nil, fmt.Errorf("board %s has no serial port %d", b.name, n)
	}
	return &boardPort{b: b, p: b.serial[n]}, nil
}

type boardPort struct {
	b *Board
	p devices.HostPort
}

func (s *boardPort) SetOutput(w io.Writer) {
	s.b.lock.Lock()
	defer s.b.lock.Unlock()
	s.p.SetOutput(w)
}

func (s *boardPort) CanReceive() int {
	s.b.lock.Lock()
	defer s.b.lock.Unlock()
	return s.p.CanReceive()
}

func (s *boardPort) Receive(c byte) {
	s.b.lock.Lock()
	defer s.b.lock.Unlock()
	s.p.Receive(c)
}

// BoardSnapshot is the serialized form of a board.
type BoardSnapshot struct {
	Board       string            `json:"board"`
	Time        time.Duration     `json:"time_ns"`
	IRQ         bool              `json:"irq"`
	FIQ         bool              `json:"fiq"`
	Resets      uint64            `json:"resets"`
	GuestErrors map[string]uint64 `json:"guest_errors,omitempty"`
	Controller  json.RawMessage   `json:"controller"`
}

// Snapshot returns the board and controller state as indented JSON.
func (b *Board) Snapshot() ([]byte, error) {
	errs := b.GuestErrors()
	b.lock.Lock()
	defer b.lock.Unlock()
	state, err := b.ctrl.SaveState()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", b.ctrl.Name(), err)
	}
	for name, n := range errs {
		if n == 0 {
			delete(errs, name)
		}
	}
	return json.MarshalIndent(BoardSnapshot{
		Board:       b.name,
		Time:        b.clock.Now(),
		IRQ:         b.cpu.IRQ(),
		FIQ:         b.cpu.FIQ(),
		Resets:      b.cpu.Resets(),
		GuestErrors: errs,
		Controller:  state,
	}, "", "  ")
}

// Memory lists the mapped devices in address order.
func (b *Board) Memory() []string {
	var out []string
	for _, m := range b.bus.Mappings() {
		out = append(out, fmt.Sprintf("0x%08X-0x%08X %s", m.Base, m.End-1, m.Device.Name()))
	}
	return out
}
