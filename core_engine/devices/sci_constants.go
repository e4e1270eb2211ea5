package devices

// TMS570 SCI register offsets.
const (
	SCI_GCR0        uint64 = 0x00
	SCI_GCR1        uint64 = 0x04
	SCI_SETINT      uint64 = 0x0C
	SCI_CLEARINT    uint64 = 0x10
	SCI_SETINTLVL   uint64 = 0x14
	SCI_CLEARINTLVL uint64 = 0x18
	SCI_FLR         uint64 = 0x1C
	SCI_INTVECT0    uint64 = 0x20
	SCI_INTVECT1    uint64 = 0x24
	SCI_FORMAT      uint64 = 0x28
	SCI_BRS         uint64 = 0x2C
	SCI_ED          uint64 = 0x30
	SCI_RD          uint64 = 0x34
	SCI_TD          uint64 = 0x38
	SCI_PIO0        uint64 = 0x3C
	SCI_PIO_END     uint64 = 0x90
	SCI_IODFTCTRL   uint64 = 0x90
	SCI_SIZE        uint64 = 0x100
	SCI_PIO_REGS           = int(SCI_PIO_END-SCI_PIO0) / 4
)

// SCIFLR bits.
const (
	SCIFLR_BRKDT    uint32 = 1 << 0
	SCIFLR_WAKEUP   uint32 = 1 << 2
	SCIFLR_TX_RDY   uint32 = 1 << 8
	SCIFLR_RX_RDY   uint32 = 1 << 9
	SCIFLR_TX_EMPTY uint32 = 1 << 11
	SCIFLR_PE       uint32 = 1 << 24
	SCIFLR_OE       uint32 = 1 << 25
	SCIFLR_FE       uint32 = 1 << 26

	SCI_INT_MASK uint32 = 0x07000303
	// Error and wakeup flags are cleared by the vector read that reports them.
	SCI_VECTOR_CLEARS = SCIFLR_WAKEUP | SCIFLR_PE | SCIFLR_FE | SCIFLR_BRKDT | SCIFLR_OE
)

const (
	SCI_GCR0_RESET  uint32 = 1 << 0
	SCI_GCR1_SWNRST uint32 = 1 << 7
	SCI_GCR1_LOOP   uint32 = 1 << 16
	SCI_GCR1_RXENA  uint32 = 1 << 24
	SCI_GCR1_TXENA  uint32 = 1 << 25
)

// sciVectors lists the interrupt sources in priority order with the offset
// INTVECTn reports for each.
var sciVectors = [...]struct {
	flag   uint32
	offset uint32
}{
	{SCIFLR_WAKEUP, 0x1},
	{SCIFLR_PE, 0x3},
	{SCIFLR_FE, 0x6},
	{SCIFLR_BRKDT, 0x7},
	{SCIFLR_OE, 0x9},
	{SCIFLR_RX_RDY, 0xB},
	{SCIFLR_TX_RDY, 0xC},
}
