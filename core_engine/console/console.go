// Package console attaches the host terminal to a guest serial port.
package console

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"example.com/mcu-vpic/core_engine/devices"
)

// EscapeKey followed by 'x' detaches the console (Ctrl-A x).
const EscapeKey byte = 0x01

const pollInterval = 5 * time.Millisecond

// Host reads the host terminal in raw non-blocking mode and queues what it
// reads for a guest serial port. Queued bytes reach the guest only through
// Pump, so the caller decides when guest time moves.
type Host struct {
	port devices.HostPort

	lock    sync.Mutex
	pending []byte
	escaped bool

	fd          int
	oldState    *term.State
	nonblockSet bool
	stopCh      chan struct{}
	done        chan struct{}
	detach      chan struct{}
	stopped     sync.Once
	detached    sync.Once
}

func New(port devices.HostPort) *Host {
	return &Host{
		port:   port,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		detach: make(chan struct{}),
	}
}

// Start puts fd into raw non-blocking mode and starts reading it.
func (h *Host) Start(fd int) error {
	h.fd = fd
	if !term.IsTerminal(fd) {
		return fmt.Errorf("console: fd %d is not a terminal", fd)
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("console: raw mode: %w", err)
	}
	h.oldState = oldState
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, oldState)
		h.oldState = nil
		return fmt.Errorf("console: nonblocking stdin: %w", err)
	}
	h.nonblockSet = true
	go h.readLoop()
	return nil
}

func (h *Host) readLoop() {
	defer close(h.done)
	buf := make([]byte, 64)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}
		n, err := unix.Read(h.fd, buf)
		if n > 0 {
			h.Input(buf[:n])
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			time.Sleep(pollInterval)
			continue
		}
		if err != nil || n == 0 {
			h.close()
			return
		}
	}
}

// Input queues host bytes, acting on the escape sequence.
func (h *Host) Input(data []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for _, b := range data {
		if h.escaped {
			h.escaped = false
			switch b {
			case 'x', 'X':
				h.close()
				return
			case EscapeKey:
				h.pending = append(h.pending, b)
			}
			continue
		}
		if b == EscapeKey {
			h.escaped = true
			continue
		}
		h.pending = append(h.pending, b)
	}
}

func (h *Host) close() {
	h.detached.Do(func() { close(h.detach) })
}

// Detached is closed when the user types the escape sequence or stdin ends.
func (h *Host) Detached() <-chan struct{} { return h.detach }

// Pump offers queued input to the guest and returns how many bytes it took.
func (h *Host) Pump() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	n := devices.Feed(h.port, h.pending)
	h.pending = h.pending[n:]
	return n
}

// Queued is the number of host bytes the guest has not taken yet.
func (h *Host) Queued() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.pending)
}

// Stop ends reading and restores the terminal.
func (h *Host) Stop() {
	h.stopped.Do(func() { close(h.stopCh) })
	if h.nonblockSet {
		<-h.done
		_ = unix.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
	}
}

// CRLFWriter expands "\n" to "\r\n" for a terminal in raw mode.
type CRLFWriter struct {
	W io.Writer
}

func (c CRLFWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+8)
	for _, b := range p {
		if b == '\n' {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	if _, err := c.W.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
