package core_engine

// Board names accepted by NewBoard.
const (
	BoardTMS570  = "tms570"
	BoardMPC5675 = "mpc5675"
	BoardPPC755  = "ppc755"
)

// TMS570 memory map and VIM request numbers.
const (
	TMS570_VIM_BASE    uint64 = 0xFFFFFE00
	TMS570_VIMRAM_BASE uint64 = 0xFFF82000
	TMS570_RTI_BASE    uint64 = 0xFFFFFD00
	TMS570_SCI_BASE    uint64 = 0xFFF7E500

	TMS570_REQ_ESM_HIGH  = 0 // RTI digital watchdog NMI
	TMS570_REQ_RTI_COMP0 = 2 // compare 0-3 use requests 2-5
	TMS570_REQ_RTI_OVF0  = 6
	TMS570_REQ_RTI_OVF1  = 7
	TMS570_REQ_RTI_TB    = 8
	TMS570_REQ_SCI_LVL0  = 64
	TMS570_REQ_SCI_LVL1  = 74
)

// MPC5675 memory map and INTC source numbers.
const (
	MPC5675_INTC_BASE     uint64 = 0xFFF48000
	MPC5675_PIT_BASE      uint64 = 0xC3FF0000
	MPC5675_SWT_BASE      uint64 = 0xFFF38000
	MPC5675_LINFLEX0_BASE uint64 = 0xFFE40000

	MPC5675_SRC_SWT      = 28
	MPC5675_SRC_LIN0_RX  = 79
	MPC5675_SRC_LIN0_TX  = 80
	MPC5675_SRC_LIN0_ERR = 81
)

// mpc5675PITSources lists the INTC source of each PIT channel.
var mpc5675PITSources = [4]int{59, 60, 61, 127}

// PPC755 memory map and EPIC inputs.
const (
	PPC755_EPIC_BASE uint64 = 0xFC000000
	PPC755_UART_BASE uint64 = 0xA0004500

	PPC755_IRQ_UART0 = 4
	PPC755_IRQ_UART1 = 0
)
