package devices

// MPC5675 SWT register offsets.
const (
	SWT_CR   uint64 = 0x00
	SWT_IR   uint64 = 0x04
	SWT_TO   uint64 = 0x08
	SWT_WN   uint64 = 0x0C
	SWT_SR   uint64 = 0x10
	SWT_CO   uint64 = 0x14
	SWT_SK   uint64 = 0x18
	SWT_SIZE uint64 = 0x4000
)

// SWT_CR bits.
const (
	SWT_CR_WEN  uint32 = 1 << 0
	SWT_CR_FRZ  uint32 = 1 << 1
	SWT_CR_STP  uint32 = 1 << 2
	SWT_CR_CSL  uint32 = 1 << 3 // oscillator clock
	SWT_CR_SLK  uint32 = 1 << 4
	SWT_CR_HLK  uint32 = 1 << 5
	SWT_CR_ITR  uint32 = 1 << 6
	SWT_CR_WND  uint32 = 1 << 7
	SWT_CR_RIA  uint32 = 1 << 8
	SWT_CR_KEY  uint32 = 1 << 9
	SWT_CR_LOCK        = SWT_CR_SLK | SWT_CR_HLK

	SWT_IR_TIF uint32 = 1 << 0
)

const (
	SWT_CR_RESET uint32 = 0xFF00011B
	SWT_TO_RESET uint32 = 0x0003FDE0
	SWT_TO_MIN   uint32 = 0x100

	SWT_SERVICE_1 uint32 = 0xA602
	SWT_SERVICE_2 uint32 = 0xB480
	SWT_UNLOCK_1  uint32 = 0xC520
	SWT_UNLOCK_2  uint32 = 0xD928

	SWT_OSC_HZ uint64 = 16000000
	SWT_SYS_HZ uint64 = 50000000
)

// SWTNextKey is the keyed service mode sequence: each valid write is
// derived from the previous one.
func SWTNextKey(key uint32) uint32 {
	return (17*key + 3) & 0xFFFF
}
