package devices_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/devices"
	"example.com/mcu-vpic/core_engine/vclock"
)

type swtFixture struct {
	swt    *devices.SWTDevice
	clock  *vclock.Clock
	irq    *MockInterruptLine
	resets int
}

func newSWT(t *testing.T) *swtFixture {
	t.Helper()
	f := &swtFixture{clock: vclock.New(), irq: &MockInterruptLine{}}
	f.swt = devices.NewSWTDevice(f.clock, f.irq, func() { f.resets++ }, quietLogger())
	return f
}

func (f *swtFixture) sequence(a, b uint32) {
	f.swt.Write(devices.SWT_SR, 4, uint64(a))
	f.swt.Write(devices.SWT_SR, 4, uint64(b))
}

// unlock clears the soft lock and programs a 100us timeout on the 50 MHz
// system clock.
func (f *swtFixture) unlock(cr uint32) {
	f.sequence(devices.SWT_UNLOCK_1, devices.SWT_UNLOCK_2)
	f.swt.Write(devices.SWT_TO, 4, 5000)
	f.swt.Write(devices.SWT_CR, 4, uint64(cr))
	f.sequence(devices.SWT_SERVICE_1, devices.SWT_SERVICE_2)
}

func TestSWTResetState(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)

	is.Equal(f.swt.Read(devices.SWT_CR, 4), uint64(devices.SWT_CR_RESET))
	is.Equal(f.swt.Read(devices.SWT_TO, 4), uint64(devices.SWT_TO_RESET))
	is.Equal(f.swt.Read(devices.SWT_CO, 4), uint64(0)) // hidden while enabled

	// Running from reset on the 16 MHz oscillator.
	f.clock.Advance(20 * time.Millisecond)
	is.Equal(f.resets, 1)
	is.Equal(f.swt.ResetRequests(), uint64(1))
}

func TestSWTLockedWritesIgnored(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)

	f.swt.Write(devices.SWT_TO, 4, 0x1000)
	is.Equal(f.swt.Read(devices.SWT_TO, 4), uint64(devices.SWT_TO_RESET))
	is.Equal(f.swt.GuestErrors(), uint64(1))

	f.sequence(devices.SWT_UNLOCK_1, devices.SWT_UNLOCK_2)
	f.swt.Write(devices.SWT_TO, 4, 0x10) // clamped to the minimum
	is.Equal(f.swt.Read(devices.SWT_TO, 4), uint64(devices.SWT_TO_MIN))

	f.swt.Write(devices.SWT_CR, 4, uint64(devices.SWT_CR_SLK))
	f.swt.Write(devices.SWT_WN, 4, 0x200)
	is.Equal(f.swt.Read(devices.SWT_WN, 4), uint64(0))
	is.Equal(f.swt.GuestErrors(), uint64(2))
}

func TestSWTInterruptThenReset(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)
	f.unlock(devices.SWT_CR_WEN | devices.SWT_CR_ITR)

	f.clock.Advance(100 * time.Microsecond)
	is.True(f.irq.Level())
	is.Equal(f.swt.Read(devices.SWT_IR, 4), uint64(devices.SWT_IR_TIF))
	is.Equal(f.resets, 0)

	f.clock.Advance(100 * time.Microsecond)
	is.Equal(f.resets, 1)

	f.swt.Write(devices.SWT_IR, 4, uint64(devices.SWT_IR_TIF))
	is.True(!f.irq.Level())
}

func TestSWTServiceReloads(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)
	f.unlock(devices.SWT_CR_WEN)

	for i := 0; i < 5; i++ {
		f.clock.Advance(80 * time.Microsecond)
		f.sequence(devices.SWT_SERVICE_1, devices.SWT_SERVICE_2)
	}
	is.Equal(f.resets, 0)

	// Wrong second word does nothing.
	f.clock.Advance(80 * time.Microsecond)
	f.sequence(devices.SWT_SERVICE_1, 0x1234)
	f.clock.Advance(20 * time.Microsecond)
	is.Equal(f.resets, 1)
}

func TestSWTWindowViolation(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)
	f.sequence(devices.SWT_UNLOCK_1, devices.SWT_UNLOCK_2)
	f.swt.Write(devices.SWT_TO, 4, 5000)
	f.swt.Write(devices.SWT_WN, 4, 1000)
	f.swt.Write(devices.SWT_CR, 4, uint64(devices.SWT_CR_WEN|devices.SWT_CR_WND|devices.SWT_CR_RIA))

	// Counter well above WN: closed window.
	f.swt.Write(devices.SWT_SR, 4, uint64(devices.SWT_SERVICE_1))
	is.Equal(f.resets, 1)
}

func TestSWTKeyedService(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)
	f.sequence(devices.SWT_UNLOCK_1, devices.SWT_UNLOCK_2)
	f.swt.Write(devices.SWT_TO, 4, 5000)
	f.swt.Write(devices.SWT_SK, 4, 7)
	f.swt.Write(devices.SWT_CR, 4, uint64(devices.SWT_CR_WEN|devices.SWT_CR_KEY))

	key := uint32(7)
	for i := 0; i < 2; i++ {
		k1 := devices.SWTNextKey(key)
		k2 := devices.SWTNextKey(k1)
		f.sequence(k1, k2)
		key = k2
		f.clock.Advance(90 * time.Microsecond)
	}
	is.Equal(f.resets, 0)
	is.Equal(f.swt.Read(devices.SWT_SK, 4), uint64(key))

	f.swt.Write(devices.SWT_SR, 4, uint64(devices.SWT_SERVICE_1))
	is.Equal(f.swt.GuestErrors(), uint64(1))
}

func TestSWTCounterVisibleWhenDisabled(t *testing.T) {
	is := is.New(t)
	f := newSWT(t)
	f.unlock(0)
	is.Equal(f.swt.Read(devices.SWT_CO, 4), uint64(5000))
	f.clock.Advance(time.Millisecond)
	is.Equal(f.resets, 0)
}
