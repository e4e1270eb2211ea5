package devices

import (
	"log"
	"sync"

	"example.com/mcu-vpic/core_engine/vclock"
)

// SWTDevice implements the MPC5675 software watchdog. The counter runs down
// from SWT_TO and is reloaded by a service sequence written to SWT_SR. With
// ITR set the first timeout raises the interrupt and the second, with the
// flag still set, requests a reset; otherwise every timeout requests a reset.
// Invalid accesses in window mode request a reset when RIA is set.
type SWTDevice struct {
	lock  sync.Mutex
	guest *GuestLog
	timer *vclock.Timer
	irq   InterruptLine

	cr, ir, to, wn, sk uint32
	lastSR             uint32
	keyed              int // valid keyed writes since the last reload

	onReset func()
	resets  uint64
	level   bool
}

// NewSWTDevice creates a watchdog running from reset, as the part does.
// onReset is called for every reset request and may be nil.
func NewSWTDevice(clock *vclock.Clock, irq InterruptLine, onReset func(), logger *log.Logger) *SWTDevice {
	s := &SWTDevice{
		guest:   NewGuestLog("SWTDevice", logger),
		irq:     irq,
		onReset: onReset,
	}
	s.timer = vclock.NewTimer(clock, s.expired)
	s.reset()
	return s
}

func (s *SWTDevice) Name() string { return "SWT" }
func (s *SWTDevice) Size() uint64 { return SWT_SIZE }

func (s *SWTDevice) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reset()
}

func (s *SWTDevice) reset() {
	s.cr = SWT_CR_RESET
	s.ir = 0
	s.to = SWT_TO_RESET
	s.wn = 0
	s.sk = 0
	s.lastSR = 0
	s.keyed = 0
	s.timer.Stop()
	s.configure()
	s.timer.SetLimit(uint64(s.to), true)
	s.update()
}

// ResetRequests counts the resets the watchdog has asked for.
func (s *SWTDevice) ResetRequests() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.resets
}

func (s *SWTDevice) GuestErrors() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.guest.Count()
}

func (s *SWTDevice) locked() bool { return s.cr&SWT_CR_LOCK != 0 }

// configure applies clock select and enable from CR.
func (s *SWTDevice) configure() {
	hz := SWT_SYS_HZ
	if s.cr&SWT_CR_CSL != 0 {
		hz = SWT_OSC_HZ
	}
	s.timer.SetFrequency(hz)
	if s.cr&SWT_CR_WEN != 0 {
		s.timer.Run(false)
	} else {
		s.timer.Stop()
	}
}

func (s *SWTDevice) update() {
	level := s.ir&SWT_IR_TIF != 0
	if level == s.level {
		return
	}
	s.level = level
	if s.irq != nil {
		s.irq.SetLevel(level)
	}
}

func (s *SWTDevice) requestReset(why string) {
	s.resets++
	s.guest.logger.Printf("SWTDevice: reset requested (%s)", why)
	if s.onReset != nil {
		s.onReset()
	}
}

func (s *SWTDevice) expired() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cr&SWT_CR_WEN == 0 {
		return
	}
	if s.cr&SWT_CR_ITR != 0 && s.ir&SWT_IR_TIF == 0 {
		s.ir |= SWT_IR_TIF
		s.update()
		return
	}
	s.requestReset("timeout")
}

func (s *SWTDevice) reload() {
	s.timer.SetCount(uint64(s.to))
}

// service handles one SWT_SR write.
func (s *SWTDevice) service(val uint32) {
	val &= 0xFFFF
	if s.cr&SWT_CR_WND != 0 && s.timer.Count() > uint64(s.wn) {
		if s.cr&SWT_CR_RIA != 0 {
			s.requestReset("service outside window")
		} else {
			s.guest.Printf("service write 0x%x outside window", val)
		}
		return
	}
	if s.cr&SWT_CR_KEY != 0 {
		if val != SWTNextKey(s.sk) {
			s.keyed = 0
			s.guest.Printf("bad keyed service 0x%x", val)
			return
		}
		s.sk = val
		s.keyed++
		if s.keyed == 2 {
			s.keyed = 0
			s.reload()
		}
		return
	}
	switch {
	case s.lastSR == SWT_SERVICE_1 && val == SWT_SERVICE_2:
		s.reload()
	case s.lastSR == SWT_UNLOCK_1 && val == SWT_UNLOCK_2:
		s.cr &^= SWT_CR_SLK
	}
	s.lastSR = val
}

func (s *SWTDevice) Read(offset uint64, size uint8) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.guest.Word(offset, size) {
		return 0
	}
	switch offset {
	case SWT_CR:
		return uint64(s.cr)
	case SWT_IR:
		return uint64(s.ir)
	case SWT_TO:
		return uint64(s.to)
	case SWT_WN:
		return uint64(s.wn)
	case SWT_SR:
		return 0
	case SWT_CO:
		// Only visible while the watchdog is disabled.
		if s.cr&SWT_CR_WEN != 0 {
			return 0
		}
		return s.timer.Count()
	case SWT_SK:
		return uint64(s.sk)
	}
	s.guest.BadOffset("read", offset)
	return 0
}

func (s *SWTDevice) Write(offset uint64, size uint8, value uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.guest.Word(offset, size) {
		return
	}
	val := uint32(value)
	switch offset {
	case SWT_SR:
		s.service(val)
		return
	case SWT_IR:
		s.ir &^= val & SWT_IR_TIF
		s.update()
		return
	case SWT_CO:
		s.guest.ReadOnly("SWT_CO", offset, value)
		return
	}
	if s.locked() {
		s.guest.Printf("write 0x%x to offset 0x%x while locked", val, offset)
		return
	}
	switch offset {
	case SWT_CR:
		s.cr = val
		s.configure()
	case SWT_TO:
		if val < SWT_TO_MIN {
			val = SWT_TO_MIN
		}
		s.to = val
		s.timer.SetLimit(uint64(val), false)
	case SWT_WN:
		s.wn = val
	case SWT_SK:
		s.sk = val & 0xFFFF
	default:
		s.guest.BadOffset("write", offset)
	}
}
