package devices_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/devices"
	"example.com/mcu-vpic/core_engine/vclock"
)

func pitReg(n int, reg uint64) uint64 {
	return devices.PIT_CH_BASE + uint64(n)*devices.PIT_CH_STRIDE + reg
}

func newPIT(t *testing.T) (*devices.PITDevice, *vclock.Clock, [devices.PIT_CHANNELS]*MockInterruptLine) {
	t.Helper()
	clock := vclock.New()
	var mocks [devices.PIT_CHANNELS]*MockInterruptLine
	var irqs [devices.PIT_CHANNELS]devices.InterruptLine
	for i := range mocks {
		mocks[i] = &MockInterruptLine{}
		irqs[i] = mocks[i]
	}
	// 1 MHz: one count per microsecond.
	return devices.NewPITDevice(clock, 1000000, irqs, quietLogger()), clock, mocks
}

func TestPITResetDisablesModule(t *testing.T) {
	is := is.New(t)
	pit, clock, mocks := newPIT(t)

	is.Equal(pit.Read(devices.PIT_PITMCR, 4), uint64(devices.PIT_MCR_MDIS))

	pit.Write(pitReg(0, devices.PIT_CH_LDVAL), 4, 100)
	pit.Write(pitReg(0, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TEN|devices.PIT_TCTRL_TIE))
	clock.Advance(time.Millisecond)
	is.Equal(pit.Read(pitReg(0, devices.PIT_CH_TFLG), 4), uint64(0)) // MDIS holds the channel
	is.True(!mocks[0].Level())
}

func TestPITPeriodicInterrupt(t *testing.T) {
	is := is.New(t)
	pit, clock, mocks := newPIT(t)

	pit.Write(devices.PIT_PITMCR, 4, 0)
	pit.Write(pitReg(1, devices.PIT_CH_LDVAL), 4, 1000)
	pit.Write(pitReg(1, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TEN|devices.PIT_TCTRL_TIE))

	clock.Advance(400 * time.Microsecond)
	is.Equal(pit.Read(pitReg(1, devices.PIT_CH_CVAL), 4), uint64(600))
	is.True(!mocks[1].Level())

	clock.Advance(600 * time.Microsecond)
	is.Equal(pit.Read(pitReg(1, devices.PIT_CH_TFLG), 4), uint64(devices.PIT_TFLG_TIF))
	is.True(mocks[1].Level())
	is.Equal(pit.Read(pitReg(1, devices.PIT_CH_CVAL), 4), uint64(1000)) // reloaded

	pit.Write(pitReg(1, devices.PIT_CH_TFLG), 4, uint64(devices.PIT_TFLG_TIF))
	is.True(!mocks[1].Level())

	clock.Advance(time.Millisecond)
	is.True(mocks[1].Level())
	is.Equal(mocks[1].Edges(), 2)
	is.True(!mocks[0].Level())
}

func TestPITFlagWithoutInterruptEnable(t *testing.T) {
	is := is.New(t)
	pit, clock, mocks := newPIT(t)

	pit.Write(devices.PIT_PITMCR, 4, 0)
	pit.Write(pitReg(2, devices.PIT_CH_LDVAL), 4, 10)
	pit.Write(pitReg(2, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TEN))
	clock.Advance(10 * time.Microsecond)

	is.Equal(pit.Read(pitReg(2, devices.PIT_CH_TFLG), 4), uint64(devices.PIT_TFLG_TIF))
	is.True(!mocks[2].Level())

	pit.Write(pitReg(2, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TEN|devices.PIT_TCTRL_TIE))
	is.True(mocks[2].Level())
}

// A channel disabled between two ticks must not flag the second one, even
// though its clock event is still queued.
func TestPITStoppedChannelDoesNotFire(t *testing.T) {
	is := is.New(t)
	pit, clock, mocks := newPIT(t)

	pit.Write(devices.PIT_PITMCR, 4, 0)
	pit.Write(pitReg(0, devices.PIT_CH_LDVAL), 4, 1000)
	pit.Write(pitReg(0, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TEN|devices.PIT_TCTRL_TIE))

	clock.Advance(time.Millisecond)
	is.True(mocks[0].Level())
	pit.Write(pitReg(0, devices.PIT_CH_TFLG), 4, uint64(devices.PIT_TFLG_TIF))

	clock.Advance(500 * time.Microsecond)
	pit.Write(pitReg(0, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TIE))
	clock.Advance(5 * time.Millisecond)

	is.Equal(pit.Read(pitReg(0, devices.PIT_CH_TFLG), 4), uint64(0))
	is.True(!mocks[0].Level())
	is.Equal(mocks[0].Edges(), 1)
}

func TestPITLoadValueAtNextReload(t *testing.T) {
	is := is.New(t)
	pit, clock, mocks := newPIT(t)

	pit.Write(devices.PIT_PITMCR, 4, 0)
	pit.Write(pitReg(3, devices.PIT_CH_LDVAL), 4, 100)
	pit.Write(pitReg(3, devices.PIT_CH_TCTRL), 4, uint64(devices.PIT_TCTRL_TEN|devices.PIT_TCTRL_TIE))
	clock.Advance(50 * time.Microsecond)
	pit.Write(pitReg(3, devices.PIT_CH_LDVAL), 4, 300)
	is.Equal(pit.Read(pitReg(3, devices.PIT_CH_CVAL), 4), uint64(50))

	clock.Advance(50 * time.Microsecond)
	is.Equal(mocks[3].Edges(), 1)
	is.Equal(pit.Read(pitReg(3, devices.PIT_CH_CVAL), 4), uint64(300))
}

func TestPITGuestErrors(t *testing.T) {
	is := is.New(t)
	pit, _, _ := newPIT(t)

	pit.Write(pitReg(0, devices.PIT_CH_CVAL), 4, 5)
	pit.Write(0x50, 4, 1)
	is.Equal(pit.Read(devices.PIT_PITMCR, 2), uint64(0))
	is.Equal(pit.GuestErrors(), uint64(3))
}
