/*
Package uart implements a 16550-compatible serial console device (spec
§3/§4.2 "serial console"), the guest-side half of the host's interactive
terminal.

Grounded on the teacher's model1052 inquiry console (emu/model1052): a
request/busy/input state machine driving a byte stream to and from a host
terminal. model1052's BCD terminal and telnet multiplexing are replaced
here with a flat byte-wide FIFO and the standard 16550 register layout a
guest's existing UART driver already expects, but the host-side half
(buffer pending input, translate it into "data ready" status, push output
bytes straight to the host writer) is the same shape.

Copyright 2026, rvchain authors
*/
package uart

import (
	"io"

	"github.com/rvchain/engine/emu/memory"
)

// Register offsets (DLAB=0 bank only; baud-rate divisor latches are
// accepted and ignored since this console has no real baud rate).
const (
	OffRBR = 0 // receiver buffer (read) / transmit holding (write)
	OffIER = 1 // interrupt enable
	OffIIR = 2 // interrupt identification (read) / FIFO control (write)
	OffLCR = 3 // line control
	OffMCR = 4 // modem control
	OffLSR = 5 // line status
	OffMSR = 6 // modem status
	OffSCR = 7 // scratch

	Size = 8
)

const (
	lsrDataReady  = 1 << 0
	lsrThrEmpty   = 1 << 5
	lsrTxEmpty    = 1 << 6
	ierRxReady    = 1 << 0
	ierThrEmpty   = 1 << 1
	lcrDLAB       = 1 << 7
)

// UART is a single-port 16550 holding at most one received byte, read on
// demand from In; Out is flushed synchronously on every write to RBR.
type UART struct {
	In  io.Reader
	Out io.Writer

	ier uint8
	lcr uint8
	mcr uint8
	scr uint8

	rxBuf    []byte
	rxPos    int
	hasByte  bool
	curByte  byte
}

// New builds a UART reading guest input from in and writing guest output
// to out; either may be nil, in which case reads report no data and
// writes are silently discarded (useful for headless runs).
func New(in io.Reader, out io.Writer) *UART {
	return &UART{In: in, Out: out}
}

func (u *UART) Name() string { return "uart" }

func (u *UART) Load(off uint64, width memory.Width) (uint64, error) {
	if u.lcr&lcrDLAB != 0 && (off == OffRBR || off == OffIER) {
		return 0, nil // divisor latch
	}
	switch off {
	case OffRBR:
		u.fill()
		if !u.hasByte {
			return 0, nil
		}
		b := u.curByte
		u.hasByte = false
		return uint64(b), nil
	case OffIER:
		return uint64(u.ier), nil
	case OffIIR:
		return 0x1, nil // no interrupt pending, 16550-compatible FIFO ID
	case OffLCR:
		return uint64(u.lcr), nil
	case OffMCR:
		return uint64(u.mcr), nil
	case OffLSR:
		u.fill()
		lsr := uint8(lsrThrEmpty | lsrTxEmpty)
		if u.hasByte {
			lsr |= lsrDataReady
		}
		return uint64(lsr), nil
	case OffMSR:
		return 0, nil
	case OffSCR:
		return uint64(u.scr), nil
	default:
		return 0, nil
	}
}

func (u *UART) Store(off uint64, width memory.Width, value uint64) error {
	if u.lcr&lcrDLAB != 0 && (off == OffRBR || off == OffIER) {
		return nil // divisor latch
	}
	switch off {
	case OffRBR:
		if u.Out != nil {
			_, _ = u.Out.Write([]byte{byte(value)})
		}
	case OffIER:
		u.ier = uint8(value)
	case OffIIR: // FCR on write
	case OffLCR:
		u.lcr = uint8(value)
	case OffMCR:
		u.mcr = uint8(value)
	case OffSCR:
		u.scr = uint8(value)
	}
	return nil
}

// Tick is a no-op: console readiness is derived lazily from the host
// reader on every LSR/RBR access rather than polled on a schedule.
func (u *UART) Tick(n int) {}

// InterruptPending reports whether the guest has enabled rx-ready
// interrupts and a byte is waiting.
func (u *UART) InterruptPending() bool {
	if u.ier&ierRxReady == 0 {
		return false
	}
	u.fill()
	return u.hasByte
}

// fill performs one non-blocking-effort read from the host input source.
// A real terminal reader is expected to be put in raw, unbuffered mode by
// the caller (internal/console); fill itself just drains one byte.
func (u *UART) fill() {
	if u.hasByte || u.In == nil {
		return
	}
	var b [1]byte
	n, err := u.In.Read(b[:])
	if n == 1 && err == nil {
		u.curByte = b[0]
		u.hasByte = true
	}
}
