package intc

// TMS570 VIM geometry.
const (
	VIM_CHANNELS = 96
	VIM_REQUESTS = 95 // request 95 does not exist; channel 95 is never driven
	VIM_WORDS    = VIM_CHANNELS / 32
	VIM_SIZE     = 0x100
	// Index n+1 reports channel n and index 0 is the phantom vector, so the
	// table has one entry more than there are channels.
	VIMRAM_ENTRIES = VIM_CHANNELS + 1
	VIMRAM_SIZE    = VIMRAM_ENTRIES * 4

	// Channels 0 and 1 are hard-wired to FIQ and cannot be disabled.
	VIM_FIXED_CHANNELS = 2
)

// VIM register offsets.
const (
	VIM_IRQINDEX      = 0x00
	VIM_FIQINDEX      = 0x04
	VIM_FIRQPR0       = 0x10
	VIM_INTREQ0       = 0x20
	VIM_REQENASET0    = 0x30
	VIM_REQENACLR0    = 0x40
	VIM_WAKEENASET0   = 0x50
	VIM_WAKEENACLR0   = 0x60
	VIM_IRQVECREG     = 0x70
	VIM_FIQVECREG     = 0x74
	VIM_CAPEVT        = 0x78
	VIM_CHANCTRL0     = 0x80
	VIM_CHANCTRL_LAST = VIM_CHANCTRL0 + 4*(VIM_CHANNELS/4-1)
)

const VIM_CAPEVT_MASK uint32 = 0x007F007F
