package devices

import "io"

// HostPort is the host side of a guest serial channel. Output goes to the
// writer set with SetOutput; input is offered one byte at a time while
// CanReceive reports room, the way a character backend feeds a UART.
type HostPort interface {
	SetOutput(w io.Writer)
	CanReceive() int
	Receive(b byte)
}

// Feed offers data to p until it stops accepting and returns how many bytes
// were taken.
func Feed(p HostPort, data []byte) int {
	n := 0
	for n < len(data) && p.CanReceive() > 0 {
		p.Receive(data[n])
		n++
	}
	return n
}
