package devices

// TMS570 RTI register offsets.
const (
	RTI_GCTRL       uint64 = 0x00
	RTI_TBCTRL      uint64 = 0x04
	RTI_CAPCTRL     uint64 = 0x08
	RTI_COMPCTRL    uint64 = 0x0C
	RTI_FRC0        uint64 = 0x10 // counter block n at +0x20*n
	RTI_UC0         uint64 = 0x14
	RTI_CPUC0       uint64 = 0x18
	RTI_CAFRC0      uint64 = 0x20
	RTI_CAUC0       uint64 = 0x24
	RTI_BLOCK_STEP  uint64 = 0x20
	RTI_COMP0       uint64 = 0x50 // COMPn at +8*n, UDCPn at +8*n+4
	RTI_TBLCOMP     uint64 = 0x70
	RTI_TBHCOMP     uint64 = 0x74
	RTI_SETINTENA   uint64 = 0x80
	RTI_CLEARINTENA uint64 = 0x84
	RTI_INTFLAG     uint64 = 0x88
	RTI_DWDCTRL     uint64 = 0x90
	RTI_DWDPRLD     uint64 = 0x94
	RTI_WDSTATUS    uint64 = 0x98
	RTI_WDKEY       uint64 = 0x9C
	RTI_DWDCNTR     uint64 = 0xA0
	RTI_WWDRXNCTRL  uint64 = 0xA4
	RTI_WWDSIZECTRL uint64 = 0xA8
	RTI_SIZE        uint64 = 0x100

	RTI_COUNTERS = 2
	RTI_COMPARES = 4
	// Output lines: compare 0-3, overflow 0-1, timebase.
	RTI_LINES          = 7
	RTI_LINE_OVERFLOW0 = 4
	RTI_LINE_TIMEBASE  = 6

	RTI_CLOCK_HZ uint64 = 10000000
)

// INTFLAG / INTENA bits.
const (
	RTI_INT_COMPARE0  uint32 = 1 << 0
	RTI_INT_TIMEBASE  uint32 = 1 << 16
	RTI_INT_OVERFLOW0 uint32 = 1 << 17
	RTI_INT_OVERFLOW1 uint32 = 1 << 18
	RTI_INT_MASK      uint32 = 0x7000F

	RTI_GCTRL_CNT0EN uint32 = 1 << 0
	RTI_GCTRL_CNT1EN uint32 = 1 << 1
	RTI_TBCTRL_TBEXT uint32 = 1 << 0
)

// Digital watchdog.
const (
	RTI_DWD_ENABLE_KEY uint32 = 0xA98559DA
	RTI_DWD_DISABLED   uint32 = 0x5312ACED
	RTI_DWD_PRLD_RESET uint32 = 0xFFF
	RTI_DWD_PRLD_MASK  uint32 = 0xFFF
	RTI_DWD_CNTR_RESET uint32 = 0x1FFFFFF
	RTI_WDKEY_ARM      uint32 = 0xE51A
	RTI_WDKEY_SERVICE  uint32 = 0xA35C
	RTI_WWD_RESET      uint32 = 0x5
	RTI_WWD_NMI        uint32 = 0xA
	RTI_WWD_SIZE_100   uint32 = 0x5

	RTI_WDST_DWD   uint32 = 1 << 1 // counter expired
	RTI_WDST_KEY   uint32 = 1 << 2 // bad key sequence
	RTI_WDST_START uint32 = 1 << 3 // serviced before the window opened
	RTI_WDST_END   uint32 = 1 << 4
	RTI_WDST_DWWD  uint32 = 1 << 5
	RTI_WDST_MASK  uint32 = 0x3E
)
