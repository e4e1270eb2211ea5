package devices_test

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/devices"
)

// regFile is a word-addressed scratch device.
type regFile struct {
	name   string
	size   uint64
	regs   map[uint64]uint64
	resets int
}

func newRegFile(name string, size uint64) *regFile {
	return &regFile{name: name, size: size, regs: map[uint64]uint64{}}
}

func (r *regFile) Name() string                        { return r.name }
func (r *regFile) Size() uint64                        { return r.size }
func (r *regFile) Reset()                              { r.resets++; r.regs = map[uint64]uint64{} }
func (r *regFile) Read(off uint64, _ uint8) uint64     { return r.regs[off] }
func (r *regFile) Write(off uint64, _ uint8, v uint64) { r.regs[off] = v }

func TestIOBusRouting(t *testing.T) {
	is := is.New(t)
	bus := devices.NewIOBus(binary.BigEndian, quietLogger())
	a, b := newRegFile("A", 0x100), newRegFile("B", 0x100)
	is.NoErr(bus.RegisterDevice(0x2000, b))
	is.NoErr(bus.RegisterDevice(0x1000, a))

	is.NoErr(bus.Write(0x1004, 4, 0xdead))
	is.NoErr(bus.Write(0x2008, 4, 0xbeef))
	is.Equal(a.regs[4], uint64(0xdead))
	is.Equal(b.regs[8], uint64(0xbeef))

	v, err := bus.Read(0x1004, 4)
	is.NoErr(err)
	is.Equal(v, uint64(0xdead))

	dev, off, ok := bus.Lookup(0x20FC)
	is.True(ok)
	is.Equal(dev.Name(), "B")
	is.Equal(off, uint64(0xFC))

	maps := bus.Mappings()
	is.Equal(len(maps), 2)
	is.Equal(maps[0].Device.Name(), "A") // sorted by base
	is.Equal(maps[1].End, uint64(0x2100))
}

func TestIOBusRejectsOverlap(t *testing.T) {
	is := is.New(t)
	bus := devices.NewIOBus(binary.BigEndian, quietLogger())
	is.NoErr(bus.RegisterDevice(0x1000, newRegFile("A", 0x100)))

	err := bus.RegisterDevice(0x10F0, newRegFile("B", 0x100))
	is.True(errors.Is(err, devices.ErrMapping))
	is.True(errors.Is(bus.RegisterDevice(0x3000, newRegFile("Z", 0)), devices.ErrMapping))
	is.True(errors.Is(bus.RegisterDevice(0x4000, nil), devices.ErrMapping))
}

func TestIOBusUnmapped(t *testing.T) {
	is := is.New(t)
	bus := devices.NewIOBus(binary.BigEndian, quietLogger())
	is.NoErr(bus.RegisterDevice(0x1000, newRegFile("A", 0x100)))

	_, err := bus.Read(0x5000, 4)
	is.True(errors.Is(err, devices.ErrMapping))
	is.True(errors.Is(bus.Write(0x10FE, 4, 1), devices.ErrMapping)) // runs off the end
}

func TestIOBusHandleMMIOByteOrder(t *testing.T) {
	is := is.New(t)
	a := newRegFile("A", 0x100)

	be := devices.NewIOBus(binary.BigEndian, quietLogger())
	is.NoErr(be.RegisterDevice(0, a))
	is.NoErr(be.HandleMMIO(0x10, []byte{0x12, 0x34, 0x56, 0x78}, true))
	is.Equal(a.regs[0x10], uint64(0x12345678))

	data := make([]byte, 2)
	a.regs[0x20] = 0xABCD
	is.NoErr(be.HandleMMIO(0x20, data, false))
	is.Equal(data, []byte{0xAB, 0xCD})

	le := devices.NewIOBus(binary.LittleEndian, quietLogger())
	b := newRegFile("B", 0x100)
	is.NoErr(le.RegisterDevice(0, b))
	is.NoErr(le.HandleMMIO(0x10, []byte{0x12, 0x34, 0x56, 0x78}, true))
	is.Equal(b.regs[0x10], uint64(0x78563412))
}

func TestGuestLog(t *testing.T) {
	is := is.New(t)
	logger, buf := captureLogger()
	g := devices.NewGuestLog("Widget", logger)

	is.True(g.Word(0x8, 4))
	is.True(!g.Word(0x9, 4))
	is.True(!g.Word(0x8, 2))
	g.ReadOnly("STATUS", 0x4, 0x1)
	is.Equal(g.Count(), uint64(3))
	is.True(strings.Contains(g.Last(), "read-only STATUS"))
	is.True(strings.HasPrefix(buf.String(), "Widget: "))
}

// slowPort takes at most two bytes.
type slowPort struct{ got []byte }

func (p *slowPort) CanReceive() int     { return 2 - len(p.got) }
func (p *slowPort) Receive(b byte)      { p.got = append(p.got, b) }
func (p *slowPort) SetOutput(io.Writer) {}

func TestFeedStopsWhenFull(t *testing.T) {
	is := is.New(t)
	p := &slowPort{}
	is.Equal(devices.Feed(p, []byte("hello")), 2)
	is.Equal(string(p.got), "he")
	is.Equal(devices.Feed(p, []byte("x")), 0)
}
