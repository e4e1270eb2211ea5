package intc

import (
	"fmt"
	"log"

	"example.com/mcu-vpic/core_engine/devices"
	"example.com/mcu-vpic/core_engine/vclock"
)

// Device is one interrupt controller flavour: the shared Controller behind a
// chip-specific register surface. Every method takes the device lock.
type Device interface {
	devices.MMIODevice

	// Input returns the n-th external input for a peripheral to drive.
	Input(n int) (devices.InterruptLine, error)
	// Connect attaches the CPU input fed by domain d.
	Connect(d Domain, out OutputLine) error
	// Acknowledge and EndOfInterrupt are the side-effecting halves of the
	// service cycle, callable without a register access.
	Acknowledge(d Domain) (uint32, bool)
	EndOfInterrupt(d Domain)
	// Inspect runs fn with the controller while holding the device lock.
	Inspect(fn func(c *Controller))
	// GuestErrors counts register accesses the model refused or ignored.
	GuestErrors() uint64
	SaveState() ([]byte, error)
	LoadState(data []byte) error
}

// Kind selects a controller flavour.
type Kind uint8

const (
	KindVIM Kind = iota
	KindEPIC
	KindINTC
)

func (k Kind) String() string {
	switch k {
	case KindVIM:
		return "tms570-vim"
	case KindEPIC:
		return "tsi107-epic"
	case KindINTC:
		return "mpc5675-intc"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Options carries what a controller needs from the board.
type Options struct {
	Logger *log.Logger
	// Clock drives EPIC global timers. Other flavours ignore it.
	Clock *vclock.Clock
	// TimerHz is the EPIC global timer count rate. Defaults to 1 MHz.
	TimerHz uint64
	Debug   bool
}

// New builds the controller flavour k.
func New(k Kind, opts Options) (Device, error) {
	switch k {
	case KindVIM:
		return NewVIM(opts)
	case KindEPIC:
		return NewEPIC(opts)
	case KindINTC:
		return NewINTC(opts)
	}
	return nil, fmt.Errorf("%w: unknown controller kind %d", ErrConfig, k)
}

// pin adapts one controller input to devices.InterruptLine.
type pin struct {
	n   int
	set func(n int, level bool)
}

func (p pin) SetLevel(level bool) { p.set(p.n, level) }

var (
	_ Device = (*VIM)(nil)
	_ Device = (*EPIC)(nil)
	_ Device = (*INTC)(nil)
)
