package devices

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sort"
)

// ErrMapping marks a bad bus layout or an access to an unmapped address.
var ErrMapping = errors.New("devices: bad mapping")

// MMIODevice is a memory-mapped register block. Offsets are relative to the
// block base; values are already in CPU byte order.
type MMIODevice interface {
	Name() string
	Size() uint64
	Reset()
	Read(offset uint64, size uint8) uint64
	Write(offset uint64, size uint8, value uint64)
}

// InterruptLine is a peripheral output wired into an interrupt controller input.
type InterruptLine interface {
	SetLevel(level bool)
}

type mapping struct {
	base, end uint64 // end is exclusive
	device    MMIODevice
}

// IOBus routes physical addresses to registered devices.
type IOBus struct {
	order    binary.ByteOrder
	mappings []mapping // sorted by base
	logger   *log.Logger
	Debug    bool
}

// NewIOBus creates an empty bus whose data buffers use the given byte order.
func NewIOBus(order binary.ByteOrder, logger *log.Logger) *IOBus {
	if logger == nil {
		logger = log.Default()
	}
	return &IOBus{order: order, logger: logger}
}

// RegisterDevice maps device at base. Overlapping ranges are rejected.
func (bus *IOBus) RegisterDevice(base uint64, device MMIODevice) error {
	if device == nil {
		return fmt.Errorf("%w: nil device at 0x%x", ErrMapping, base)
	}
	size := device.Size()
	if size == 0 || base+size < base {
		return fmt.Errorf("%w: %s at 0x%x has size 0x%x", ErrMapping, device.Name(), base, size)
	}
	m := mapping{base: base, end: base + size, device: device}
	for _, e := range bus.mappings {
		if m.base < e.end && e.base < m.end {
			return fmt.Errorf("%w: %s [0x%x,0x%x) overlaps %s [0x%x,0x%x)",
				ErrMapping, device.Name(), m.base, m.end, e.device.Name(), e.base, e.end)
		}
	}
	bus.mappings = append(bus.mappings, m)
	sort.Slice(bus.mappings, func(i, j int) bool { return bus.mappings[i].base < bus.mappings[j].base })
	if bus.Debug {
		bus.logger.Printf("IOBus: %s mapped at 0x%x-0x%x", device.Name(), m.base, m.end-1)
	}
	return nil
}

// Lookup finds the device covering addr and the offset into it.
func (bus *IOBus) Lookup(addr uint64) (MMIODevice, uint64, bool) {
	i := sort.Search(len(bus.mappings), func(i int) bool { return bus.mappings[i].end > addr })
	if i < len(bus.mappings) && bus.mappings[i].base <= addr {
		m := bus.mappings[i]
		return m.device, addr - m.base, true
	}
	return nil, 0, false
}

// Mapping is one registered range, End exclusive.
type Mapping struct {
	Base, End uint64
	Device    MMIODevice
}

// Mappings lists registered ranges in address order.
func (bus *IOBus) Mappings() []Mapping {
	out := make([]Mapping, len(bus.mappings))
	for i, m := range bus.mappings {
		out[i] = Mapping{Base: m.base, End: m.end, Device: m.device}
	}
	return out
}

// Devices lists registered devices in address order.
func (bus *IOBus) Devices() []MMIODevice {
	out := make([]MMIODevice, len(bus.mappings))
	for i, m := range bus.mappings {
		out[i] = m.device
	}
	return out
}

func (bus *IOBus) resolve(addr uint64, size uint8) (MMIODevice, uint64, error) {
	switch size {
	case 1, 2, 4, 8:
	default:
		return nil, 0, fmt.Errorf("%w: access size %d at 0x%x", ErrMapping, size, addr)
	}
	dev, off, ok := bus.Lookup(addr)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unhandled access to 0x%x", ErrMapping, addr)
	}
	if off+uint64(size) > dev.Size() {
		return nil, 0, fmt.Errorf("%w: access to 0x%x size %d crosses the end of %s", ErrMapping, addr, size, dev.Name())
	}
	return dev, off, nil
}

// Read performs a load of size bytes.
func (bus *IOBus) Read(addr uint64, size uint8) (uint64, error) {
	dev, off, err := bus.resolve(addr, size)
	if err != nil {
		return 0, err
	}
	v := dev.Read(off, size)
	if bus.Debug {
		bus.logger.Printf("IOBus: read%d 0x%x (%s+0x%x) = 0x%x", size*8, addr, dev.Name(), off, v)
	}
	return v, nil
}

// Write performs a store of size bytes.
func (bus *IOBus) Write(addr uint64, size uint8, value uint64) error {
	dev, off, err := bus.resolve(addr, size)
	if err != nil {
		return err
	}
	if bus.Debug {
		bus.logger.Printf("IOBus: write%d 0x%x (%s+0x%x) = 0x%x", size*8, addr, dev.Name(), off, value)
	}
	dev.Write(off, size, value)
	return nil
}

// HandleMMIO services a CPU access described by a raw data buffer, the way a
// CPU model hands over loads and stores. len(data) is the access size.
func (bus *IOBus) HandleMMIO(addr uint64, data []byte, isWrite bool) error {
	size := uint8(len(data))
	if isWrite {
		return bus.Write(addr, size, bus.decode(data))
	}
	v, err := bus.Read(addr, size)
	if err != nil {
		for i := range data {
			data[i] = 0xFF
		}
		return err
	}
	bus.encode(data, v)
	return nil
}

func (bus *IOBus) decode(data []byte) uint64 {
	switch len(data) {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(bus.order.Uint16(data))
	case 4:
		return uint64(bus.order.Uint32(data))
	case 8:
		return bus.order.Uint64(data)
	}
	return 0
}

func (bus *IOBus) encode(data []byte, v uint64) {
	switch len(data) {
	case 1:
		data[0] = byte(v)
	case 2:
		bus.order.PutUint16(data, uint16(v))
	case 4:
		bus.order.PutUint32(data, uint32(v))
	case 8:
		bus.order.PutUint64(data, v)
	}
}
