package devices_test

import (
	"bytes"
	"testing"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/devices"
)

type sciFixture struct {
	sci        *devices.SCIDevice
	out        bytes.Buffer
	lvl0, lvl1 MockInterruptLine
}

func newSCI(t *testing.T) *sciFixture {
	t.Helper()
	f := &sciFixture{}
	f.sci = devices.NewSCIDevice(&f.out, &f.lvl0, &f.lvl1, quietLogger())
	f.write(devices.SCI_GCR1, devices.SCI_GCR1_SWNRST|devices.SCI_GCR1_RXENA|devices.SCI_GCR1_TXENA)
	return f
}

func (f *sciFixture) write(off uint64, v uint32) { f.sci.Write(off, 4, uint64(v)) }
func (f *sciFixture) read(off uint64) uint32     { return uint32(f.sci.Read(off, 4)) }

func TestSCITransmit(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)

	for _, c := range []byte("ok\n") {
		f.write(devices.SCI_TD, uint32(c))
	}
	is.Equal(f.out.String(), "ok\n")
	is.True(f.read(devices.SCI_FLR)&devices.SCIFLR_TX_EMPTY != 0)
}

func TestSCIReceiveInterrupt(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)
	f.write(devices.SCI_SETINT, devices.SCIFLR_RX_RDY)

	is.Equal(f.sci.CanReceive(), 1)
	f.sci.Receive('x')
	is.Equal(f.sci.CanReceive(), 0)
	is.True(f.lvl0.Level())
	is.True(!f.lvl1.Level())
	is.Equal(f.read(devices.SCI_INTVECT0), uint32(0xB))

	is.Equal(f.read(devices.SCI_RD), uint32('x'))
	is.True(!f.lvl0.Level())
	is.Equal(f.read(devices.SCI_INTVECT0), uint32(0))
}

func TestSCILevelRouting(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)
	f.write(devices.SCI_SETINTLVL, devices.SCIFLR_RX_RDY)
	f.write(devices.SCI_SETINT, devices.SCIFLR_RX_RDY|devices.SCIFLR_TX_RDY)

	// TX ready is always set while idle.
	is.True(f.lvl0.Level())
	is.Equal(f.read(devices.SCI_INTVECT0), uint32(0xC))

	f.sci.Receive('a')
	is.True(f.lvl1.Level())
	is.Equal(f.read(devices.SCI_INTVECT1), uint32(0xB))

	f.write(devices.SCI_CLEARINT, devices.SCIFLR_TX_RDY)
	is.True(!f.lvl0.Level())
}

func TestSCIOverrunVectorClears(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)
	f.write(devices.SCI_SETINT, devices.SCIFLR_RX_RDY|devices.SCIFLR_OE)

	f.sci.Receive('1')
	f.sci.Receive('2')
	is.True(f.read(devices.SCI_FLR)&devices.SCIFLR_OE != 0)

	// Overrun outranks receive and is cleared by being reported.
	is.Equal(f.read(devices.SCI_INTVECT0), uint32(0x9))
	is.True(f.read(devices.SCI_FLR)&devices.SCIFLR_OE == 0)
	is.Equal(f.read(devices.SCI_INTVECT0), uint32(0xB))
	is.Equal(f.read(devices.SCI_RD), uint32('2'))
}

func TestSCILoopback(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)
	f.write(devices.SCI_GCR1, devices.SCI_GCR1_SWNRST|devices.SCI_GCR1_RXENA|devices.SCI_GCR1_TXENA|devices.SCI_GCR1_LOOP)

	f.write(devices.SCI_TD, 'z')
	is.Equal(f.out.Len(), 0)
	is.Equal(f.read(devices.SCI_RD), uint32('z'))
}

func TestSCIHeldInReset(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)
	f.write(devices.SCI_SETINT, devices.SCIFLR_TX_RDY)
	is.True(f.lvl0.Level())

	f.write(devices.SCI_GCR0, 0)
	is.True(!f.lvl0.Level())
	f.write(devices.SCI_GCR1, devices.SCI_GCR1_SWNRST)
	is.Equal(f.read(devices.SCI_GCR1), uint32(0))
	is.Equal(f.sci.CanReceive(), 0)

	f.write(devices.SCI_TD, 'q')
	is.Equal(f.out.Len(), 0)
	is.Equal(f.sci.GuestErrors(), uint64(2))
}

func TestSCIRejectsByteAccess(t *testing.T) {
	is := is.New(t)
	f := newSCI(t)
	f.sci.Write(devices.SCI_TD, 1, 'x')
	is.Equal(f.out.Len(), 0)
	is.Equal(f.sci.GuestErrors(), uint64(1))
}
