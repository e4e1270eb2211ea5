package devices

// PC16552D layout: two 16550 channels, each with eight byte registers and
// the DMA status register, channel 1 at +0x100.
const (
	UART_CHANNELS              = 2
	UART_CHANNEL_STRIDE uint64 = 0x100
	UART_SIZE           uint64 = 0x200
	UART_FIFO_SIZE             = 16
)

// Register offsets within a channel.
const (
	RHR_THR_DLL uint64 = 0 // RBR (R), THR (W), DLL (DLAB=1)
	IER_DLH     uint64 = 1 // IER, DLM (DLAB=1)
	IIR_FCR     uint64 = 2 // IIR (R), FCR (W)
	LCR         uint64 = 3
	MCR         uint64 = 4
	LSR         uint64 = 5
	MSR         uint64 = 6
	SCR         uint64 = 7
	DSR         uint64 = 0x10 // DMA status
)

// Line Control Register (LCR) bits
const (
	LCR_DLAB byte = 0x80 // Divisor Latch Access Bit
)

// Modem Control Register (MCR) bits
const (
	MCR_LOOP byte = 0x10
)

// Line Status Register (LSR) bits
const (
	LSR_DR   byte = 0x01 // Data Ready
	LSR_OE   byte = 0x02 // Overrun Error
	LSR_PE   byte = 0x04 // Parity Error
	LSR_FE   byte = 0x08 // Framing Error
	LSR_BI   byte = 0x10 // Break Interrupt
	LSR_THRE byte = 0x20 // Transmitter Holding Register Empty
	LSR_TEMT byte = 0x40 // Transmitter Empty
	LSR_ERF  byte = 0x80 // Error in RCVR FIFO
	LSR_ERRS      = LSR_OE | LSR_PE | LSR_FE | LSR_BI
)

// Interrupt Identification Register (IIR) bits (when read)
const (
	IIR_NO_INT_PENDING byte = 0x01
	IIR_RLS            byte = 0x06 // Receiver Line Status
	IIR_RDA            byte = 0x04 // Received Data Available
	IIR_THRE           byte = 0x02 // Transmitter Holding Register Empty
	IIR_MS             byte = 0x00 // Modem Status
	IIR_FIFO_ENABLED   byte = 0xC0
)

// Interrupt Enable Register (IER) bits
const (
	IER_RX_DATA_AVAILABLE byte = 0x01
	IER_THRE_ENABLE       byte = 0x02
	IER_RX_LINE_STATUS    byte = 0x04
	IER_MODEM_STATUS      byte = 0x08
	IER_MASK              byte = 0x0F
)

// FIFO Control Register (FCR) bits
const (
	FCR_ENABLE   byte = 0x01
	FCR_RX_RESET byte = 0x02
	FCR_TX_RESET byte = 0x04
	FCR_DMA_MODE byte = 0x08
	FCR_TRIGGER  byte = 0xC0
)

// DSR bits. RXRDY reads 1 while the receiver has no data.
const (
	DSR_RXRDY byte = 0x01
	DSR_TXRDY byte = 0x02
)

// uartTriggers maps FCR[7:6] to the receive FIFO interrupt level.
var uartTriggers = [4]int{1, 4, 8, 14}
