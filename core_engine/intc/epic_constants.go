package intc

// tsi107 EPIC sources. Lines 0-3 are the global timers, 4-19 the external
// or serial IRQ0-15 and 20 the I2C unit.
const (
	EPIC_TIMERS    = 4
	EPIC_EXTERNAL  = 16
	EPIC_LINES     = EPIC_TIMERS + EPIC_EXTERNAL + 1
	EPIC_IRQ_BASE  = EPIC_TIMERS
	EPIC_I2C_LINE  = EPIC_LINES - 1
	EPIC_I2C_INPUT = EPIC_EXTERNAL // Input(16) is the I2C source
	EPIC_DEPTH     = 16
	EPIC_SIZE      = 0x200000
)

// EPIC register offsets within the EUMB window.
const (
	EPIC_FRR    = 0x41000
	EPIC_GCR    = 0x41020
	EPIC_EICR   = 0x41030
	EPIC_EVI    = 0x41080
	EPIC_PI     = 0x41090
	EPIC_SVR    = 0x410E0
	EPIC_TFRR   = 0x410F0
	EPIC_GTCCR0 = 0x41100 // + 0x40 per timer
	EPIC_IVPR0  = 0x50200 // + 0x20 per IRQ, IDR at +0x10
	EPIC_IIVPR  = 0x51020
	EPIC_IIDR   = 0x51030
	EPIC_PCTPR  = 0x60080
	EPIC_IACK   = 0x600A0
	EPIC_EOI    = 0x600B0

	EPIC_GT_STRIDE  = 0x40
	EPIC_GT_BCR     = 0x10
	EPIC_GT_VPR     = 0x20
	EPIC_GT_DR      = 0x30
	EPIC_IRQ_STRIDE = 0x20
	EPIC_IRQ_DR     = 0x10
)

// EPIC register bits and reset values.
const (
	EPIC_GCR_RESET uint32 = 1 << 31
	EPIC_GCR_MIXED uint32 = 1 << 29
	EPIC_PI_P0     uint32 = 1 << 0
	EPIC_DR_P0     uint32 = 1 << 0

	EPIC_FRR_VALUE   uint32 = 0x17<<16 | 0x02
	EPIC_EVI_VALUE   uint32 = 0x01 << 16
	EPIC_EICR_RESET  uint32 = 0x4 << 28
	EPIC_SVR_RESET   uint32 = 0xFF
	EPIC_PCTPR_RESET uint8  = 0xF

	EPIC_TIMER_HZ = 1000000
)
