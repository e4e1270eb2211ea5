package intc

// MPC5675 INTC geometry.
const (
	INTC_SOURCES  = 337
	INTC_SOFTWARE = 8 // sources 0-7 are set through SSCIR
	INTC_DEPTH    = 15
	INTC_SIZE     = 0x4000
)

// INTC register offsets.
const (
	INTC_BCR     = 0x00
	INTC_CPR     = 0x08
	INTC_IACKR   = 0x10
	INTC_EOIR    = 0x18
	INTC_SSCIR0  = 0x20
	INTC_PSR0    = 0x40
	INTC_PSR_END = INTC_PSR0 + INTC_SOURCES
)

const (
	INTC_BCR_HVEN uint32 = 1 << 0
	INTC_BCR_VTES uint32 = 1 << 5
	INTC_BCR_MASK        = INTC_BCR_HVEN | INTC_BCR_VTES

	INTC_CPR_MASK  uint8 = 0xF
	INTC_CPR_RESET uint8 = 0xF
)
