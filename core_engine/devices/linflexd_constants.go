package devices

// MPC5675 LINFlexD register offsets.
const (
	LIN_LINCR1   uint64 = 0x00
	LIN_LINIER   uint64 = 0x04
	LIN_LINSR    uint64 = 0x08
	LIN_LINESR   uint64 = 0x0C
	LIN_UARTCR   uint64 = 0x10
	LIN_UARTSR   uint64 = 0x14
	LIN_LINTCSR  uint64 = 0x18
	LIN_LINOCR   uint64 = 0x1C
	LIN_LINTOCR  uint64 = 0x20
	LIN_LINFBRR  uint64 = 0x24
	LIN_LINIBRR  uint64 = 0x28
	LIN_LINCFR   uint64 = 0x2C
	LIN_LINCR2   uint64 = 0x30
	LIN_BIDR     uint64 = 0x34
	LIN_BDRL     uint64 = 0x38
	LIN_BDRM     uint64 = 0x3C
	LIN_IFER     uint64 = 0x40
	LIN_IFMI     uint64 = 0x44
	LIN_IFMR     uint64 = 0x48
	LIN_IFCR0    uint64 = 0x4C
	LIN_IFCR_END uint64 = 0x8C
	LIN_GCR      uint64 = 0x8C
	LIN_UARTPTO  uint64 = 0x90
	LIN_UARTCTO  uint64 = 0x94
	LIN_DMATXE   uint64 = 0x98
	LIN_DMARXE   uint64 = 0x9C
	LIN_SIZE     uint64 = 0x4000
	LIN_IFCRS           = int(LIN_IFCR_END-LIN_IFCR0) / 4
)

// Interrupt line order.
const (
	LIN_LINE_RX = iota
	LIN_LINE_TX
	LIN_LINE_ERR
	LIN_LINES
)

const (
	LINCR1_INIT  uint32 = 1 << 0
	LINCR1_SLEEP uint32 = 1 << 1
	LINCR1_RESET uint32 = 0x82

	LINIER_DTIE uint32 = 1 << 1
	LINIER_DRIE uint32 = 1 << 2
	LINIER_BOIE uint32 = 1 << 7
	LINIER_FEIE uint32 = 1 << 8

	UARTCR_UART uint32 = 1 << 0
	UARTCR_TXEN uint32 = 1 << 4
	UARTCR_RXEN uint32 = 1 << 5
	// Word length and parity bits only change in init mode.
	UARTCR_INIT_ONLY uint32 = 0x34C

	UARTSR_DTF  uint32 = 1 << 1
	UARTSR_DRF  uint32 = 1 << 2
	UARTSR_BOF  uint32 = 1 << 7
	UARTSR_FEF  uint32 = 1 << 8
	UARTSR_W1C  uint32 = 0xFFEF
	UARTSR_ERRS        = UARTSR_BOF | UARTSR_FEF

	LINSR_RESET   uint32 = 0x40
	LINTCSR_RESET uint32 = 0x200
	LINOCR_RESET  uint32 = 0xFFFF
	LINTOCR_RESET uint32 = 0xE2C
	LINCR2_RESET  uint32 = 0x6000
)
