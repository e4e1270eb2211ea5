package devices

import (
	"fmt"
	"log"
)

// GuestLog records guest programming errors: bad offsets, writes to
// read-only registers, wrong access sizes. The access itself always
// completes with a defined value.
type GuestLog struct {
	name   string
	logger *log.Logger
	count  uint64
	last   string
}

func NewGuestLog(name string, logger *log.Logger) *GuestLog {
	if logger == nil {
		logger = log.Default()
	}
	return &GuestLog{name: name, logger: logger}
}

func (g *GuestLog) Printf(format string, args ...any) {
	g.count++
	g.last = fmt.Sprintf(format, args...)
	g.logger.Printf("%s: %s", g.name, g.last)
}

// Count is the number of guest errors seen since creation.
func (g *GuestLog) Count() uint64 { return g.count }

// Last is the most recent message, empty if none.
func (g *GuestLog) Last() string { return g.last }

// Word reports whether an access is a naturally aligned 32-bit one and logs
// it otherwise.
func (g *GuestLog) Word(offset uint64, size uint8) bool {
	if size != 4 || offset&3 != 0 {
		g.Printf("unsupported %d-byte access at offset 0x%x", size, offset)
		return false
	}
	return true
}

// ReadOnly logs a write to a read-only register.
func (g *GuestLog) ReadOnly(reg string, offset uint64, value uint64) {
	g.Printf("write 0x%x to read-only %s (offset 0x%x) ignored", value, reg, offset)
}

// BadOffset logs an access to an unimplemented offset.
func (g *GuestLog) BadOffset(op string, offset uint64) {
	g.Printf("bad %s offset 0x%x", op, offset)
}
