package devices

// MPC5675 PIT register offsets.
const (
	PIT_PITMCR    uint64 = 0x000
	PIT_CH_BASE   uint64 = 0x100
	PIT_CH_STRIDE uint64 = 0x10
	PIT_CH_LDVAL  uint64 = 0x0
	PIT_CH_CVAL   uint64 = 0x4
	PIT_CH_TCTRL  uint64 = 0x8
	PIT_CH_TFLG   uint64 = 0xC
	PIT_SIZE      uint64 = 0x4000
	PIT_CHANNELS         = 4
	PIT_CLOCK_HZ  uint64 = 50000000
)

const (
	PIT_MCR_FRZ  uint32 = 1 << 0
	PIT_MCR_MDIS uint32 = 1 << 1
	PIT_MCR_MASK        = PIT_MCR_FRZ | PIT_MCR_MDIS

	PIT_TCTRL_TEN  uint32 = 1 << 0
	PIT_TCTRL_TIE  uint32 = 1 << 1
	PIT_TCTRL_MASK        = PIT_TCTRL_TEN | PIT_TCTRL_TIE

	PIT_TFLG_TIF uint32 = 1 << 0
)
